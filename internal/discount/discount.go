// Package discount evaluates discount codes against a price.
package discount

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

var (
	ErrInactive      = errors.New("discount code is inactive")
	ErrNotStarted    = errors.New("discount code is not valid yet")
	ErrExpired       = errors.New("discount code has expired")
	ErrUsageLimit    = errors.New("discount code usage limit reached")
	ErrUserLimit     = errors.New("discount code already used by this user")
	ErrNotApplicable = errors.New("discount code does not apply to this file")
	ErrMinPurchase   = errors.New("price is below the minimum purchase of the discount code")
	ErrInvalidValue  = errors.New("invalid discount value")
)

// Type is the way a code reduces a price.
type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
	TypeFree       Type = "free"
)

// Code holds the rules of a discount code.
type Code struct {
	Code        string
	Type        Type
	Value       int64
	MaxDiscount int64
	MinPurchase int64
	UsageLimit  int
	UsedCount   int
	// PerUserLimit of zero means unlimited.
	PerUserLimit int
	FileID       *uint
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	Active       bool
}

// Context is the purchase a code is checked against.
type Context struct {
	Now    time.Time
	FileID uint
	Price  int64
	// UserRedemptions is the number of active purchases of the user with this code.
	UserRedemptions int64
}

// Result is the outcome of applying a code to a price. All amounts are in Toman.
type Result struct {
	Original int64 `json:"originalPrice"`
	Discount int64 `json:"discountAmount"`
	Final    int64 `json:"finalPrice"`
}

// Normalize returns the canonical form of a user-entered code.
func Normalize(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, code)
}

// Validate checks that the code's type and value are consistent.
func (c Code) Validate() error {
	switch c.Type {
	case TypePercentage:
		if c.Value < 1 || c.Value > 100 {
			return ErrInvalidValue
		}
	case TypeFixed:
		if c.Value < 1 {
			return ErrInvalidValue
		}
	case TypeFree:
	default:
		return ErrInvalidValue
	}
	if c.MaxDiscount < 0 || c.MinPurchase < 0 || c.UsageLimit < 0 || c.PerUserLimit < 0 {
		return ErrInvalidValue
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && c.ValidUntil.Before(*c.ValidFrom) {
		return ErrInvalidValue
	}
	return nil
}

// Check evaluates the rules of the code for the given purchase.
// The first failing rule is returned.
func Check(c Code, ctx Context) error {
	switch {
	case !c.Active:
		return ErrInactive
	case c.ValidFrom != nil && ctx.Now.Before(*c.ValidFrom):
		return ErrNotStarted
	case c.ValidUntil != nil && ctx.Now.After(*c.ValidUntil):
		return ErrExpired
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return ErrUsageLimit
	case c.PerUserLimit > 0 && ctx.UserRedemptions >= int64(c.PerUserLimit):
		return ErrUserLimit
	case c.FileID != nil && *c.FileID != ctx.FileID:
		return ErrNotApplicable
	case ctx.Price < c.MinPurchase:
		return ErrMinPurchase
	}
	return nil
}

// Calculate applies the code to the price. The discount never exceeds the price.
func Calculate(c Code, price int64) Result {
	if price < 0 {
		price = 0
	}

	var amount int64
	switch c.Type {
	case TypePercentage:
		value := min(max(c.Value, 0), 100)
		amount = price * value / 100
		if c.MaxDiscount > 0 {
			amount = min(amount, c.MaxDiscount)
		}
	case TypeFixed:
		amount = min(max(c.Value, 0), price)
	case TypeFree:
		amount = price
	}

	return Result{
		Original: price,
		Discount: amount,
		Final:    price - amount,
	}
}
