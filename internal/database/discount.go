package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// ErrDiscountExhausted is returned when a discount code can't be reserved
// because it is inactive or its usage limit was reached concurrently.
var ErrDiscountExhausted = errors.New("discount code exhausted")

// ErrDiscountUserLimit is returned when the buyer already used a discount code
// as often as its per-user limit allows.
var ErrDiscountUserLimit = errors.New("discount code per-user limit reached")

// DiscountType is the way a discount code reduces a price.
type DiscountType string

const (
	// DiscountTypePercentage reduces the price by Value percent.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed reduces the price by Value Toman.
	DiscountTypeFixed DiscountType = "fixed"
	// DiscountTypeFree reduces the price to zero.
	DiscountTypeFree DiscountType = "free"
)

// DiscountCode represents a redeemable discount code.
type DiscountCode struct {
	gorm.Model
	// Code is stored upper-cased.
	Code        string       `gorm:"uniqueIndex;not null"`
	Description string
	Type        DiscountType `gorm:"not null"`
	Value       int64
	// MaxDiscount caps percentage discounts. Zero means no cap.
	MaxDiscount int64
	MinPurchase int64
	// UsageLimit is the total number of redemptions. Zero means unlimited.
	UsageLimit int
	UsedCount  int
	// PerUserLimit is the number of redemptions per user. Zero means unlimited.
	PerUserLimit int
	// FileID restricts the code to a single file when set.
	FileID     *uint `gorm:"index"`
	ValidFrom  *time.Time
	ValidUntil *time.Time
	Active     bool
}

// DiscountDB defines the interface for discount-code-related database operations.
type DiscountDB interface {
	CreateDiscountCode(ctx context.Context, code *DiscountCode) error
	GetDiscountCodeByID(ctx context.Context, id uint) (*DiscountCode, error)
	GetDiscountCodeByCode(ctx context.Context, code string) (*DiscountCode, error)
	ListDiscountCodes(ctx context.Context) ([]DiscountCode, error)
	SetDiscountCodeActive(ctx context.Context, id uint, active bool) error
	CountUserRedemptions(ctx context.Context, codeID, userID uint) (int64, error)
}

func (c *Client) CreateDiscountCode(ctx context.Context, code *DiscountCode) error {
	code.Code = strings.ToUpper(strings.TrimSpace(code.Code))
	if err := c.withContext(ctx).Create(code).Error; err != nil {
		log.Error("failed to create discount code", "error", err)
		return translateError(err)
	}
	return nil
}

func (c *Client) GetDiscountCodeByID(ctx context.Context, id uint) (*DiscountCode, error) {
	var code DiscountCode
	if err := c.withContext(ctx).First(&code, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &code, nil
}

func (c *Client) GetDiscountCodeByCode(ctx context.Context, code string) (*DiscountCode, error) {
	var dc DiscountCode
	if err := c.withContext(ctx).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&dc).Error; err != nil {
		return nil, translateError(err)
	}
	return &dc, nil
}

func (c *Client) ListDiscountCodes(ctx context.Context) ([]DiscountCode, error) {
	var codes []DiscountCode
	if err := c.withContext(ctx).Order("created_at DESC").Find(&codes).Error; err != nil {
		log.Error("failed to list discount codes", "error", err)
		return nil, err
	}
	return codes, nil
}

func (c *Client) SetDiscountCodeActive(ctx context.Context, id uint, active bool) error {
	result := c.withContext(ctx).Model(&DiscountCode{}).Where("id = ?", id).Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountUserRedemptions counts the pending and completed purchases of a user that used the code.
func (c *Client) CountUserRedemptions(ctx context.Context, codeID, userID uint) (int64, error) {
	var count int64
	err := c.withContext(ctx).Model(&Purchase{}).
		Where("discount_code_id = ? AND user_id = ? AND status IN ?", codeID, userID,
			[]PurchaseStatus{PurchaseStatusPending, PurchaseStatusCompleted}).
		Count(&count).Error
	if err != nil {
		log.Error("failed to count discount redemptions", "error", err)
		return 0, err
	}
	return count, nil
}

// reserveDiscountUsage increments the usage counter if the code is active and below its limit.
func reserveDiscountUsage(tx *gorm.DB, codeID uint) error {
	result := tx.Model(&DiscountCode{}).
		Where("id = ? AND active = ? AND (usage_limit = 0 OR used_count < usage_limit)", codeID, true).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDiscountExhausted
	}
	return nil
}

// checkUserRedemptions fails with ErrDiscountUserLimit if the user has no redemptions left.
// It must run after reserveDiscountUsage so the count happens under the write lock.
func checkUserRedemptions(tx *gorm.DB, codeID, userID uint) error {
	var code DiscountCode
	if err := tx.Select("per_user_limit").First(&code, codeID).Error; err != nil {
		return err
	}
	if code.PerUserLimit <= 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&Purchase{}).
		Where("discount_code_id = ? AND user_id = ? AND status IN ?", codeID, userID, activeStatuses).
		Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(code.PerUserLimit) {
		return ErrDiscountUserLimit
	}
	return nil
}

// releaseDiscountUsage gives back a previously reserved usage.
func releaseDiscountUsage(tx *gorm.DB, codeID uint) error {
	return tx.Model(&DiscountCode{}).
		Where("id = ? AND used_count > 0", codeID).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).Error
}
