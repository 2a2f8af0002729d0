package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/discount"
)

// DiscountInput holds the rules of a new discount code.
type DiscountInput struct {
	Code         string
	Description  string
	Type         discount.Type
	Value        int64
	MaxDiscount  int64
	MinPurchase  int64
	UsageLimit   int
	PerUserLimit int
	FileID       *uint
	ValidFrom    *time.Time
	ValidUntil   *time.Time
}

// CreateDiscountCode validates and stores a new active discount code.
func (e *Engine) CreateDiscountCode(ctx context.Context, in DiscountInput) (*database.DiscountCode, error) {
	rules := discount.Code{
		Code:         discount.Normalize(in.Code),
		Type:         in.Type,
		Value:        in.Value,
		MaxDiscount:  in.MaxDiscount,
		MinPurchase:  in.MinPurchase,
		UsageLimit:   in.UsageLimit,
		PerUserLimit: in.PerUserLimit,
		FileID:       in.FileID,
		ValidFrom:    in.ValidFrom,
		ValidUntil:   in.ValidUntil,
		Active:       true,
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	if in.FileID != nil {
		if _, err := e.db.GetFileByID(ctx, *in.FileID); errors.Is(err, database.ErrNotFound) {
			return nil, ErrFileNotFound
		} else if err != nil {
			return nil, err
		}
	}

	dc := &database.DiscountCode{
		Code:         rules.Code,
		Description:  strings.TrimSpace(in.Description),
		Type:         database.DiscountType(rules.Type),
		Value:        rules.Value,
		MaxDiscount:  rules.MaxDiscount,
		MinPurchase:  rules.MinPurchase,
		UsageLimit:   rules.UsageLimit,
		PerUserLimit: rules.PerUserLimit,
		FileID:       rules.FileID,
		ValidFrom:    rules.ValidFrom,
		ValidUntil:   rules.ValidUntil,
		Active:       true,
	}
	if err := e.db.CreateDiscountCode(ctx, dc); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrDiscountCodeTaken
		}
		return nil, fmt.Errorf("failed to create discount code: %w", err)
	}

	log.Info("created discount code", "code", dc.Code, "type", dc.Type, "value", dc.Value)
	return dc, nil
}

// ListDiscountCodes returns all discount codes, newest first.
func (e *Engine) ListDiscountCodes(ctx context.Context) ([]database.DiscountCode, error) {
	return e.db.ListDiscountCodes(ctx)
}

// DeactivateDiscountCode stops a code from being redeemed. Purchases already using it are kept.
func (e *Engine) DeactivateDiscountCode(ctx context.Context, id uint) error {
	err := e.db.SetDiscountCodeActive(ctx, id, false)
	if errors.Is(err, database.ErrNotFound) {
		return ErrDiscountNotFound
	}
	return err
}
