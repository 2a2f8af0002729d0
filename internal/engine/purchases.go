package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/discount"
	"github.com/nashr-app/nashr/internal/notify/email"
)

// PurchaseInput holds the data of a purchase request.
type PurchaseInput struct {
	FileID           uint
	DiscountCode     string
	PaymentReference string
	BankCardID       *uint
}

// DiscountQuote is a discount code applied to a file price.
type DiscountQuote struct {
	Code   *database.DiscountCode
	Result discount.Result
}

// ValidateDiscount checks a code for a purchase of the file by the user and returns the resulting prices.
func (e *Engine) ValidateDiscount(ctx context.Context, userID, fileID uint, code string) (*DiscountQuote, error) {
	file, err := e.GetFile(ctx, nil, fileID)
	if err != nil {
		return nil, err
	}
	return e.quote(ctx, userID, file, code)
}

func (e *Engine) quote(ctx context.Context, userID uint, file *database.File, code string) (*DiscountQuote, error) {
	dc, err := e.db.GetDiscountCodeByCode(ctx, discount.Normalize(code))
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrDiscountNotFound
	}
	if err != nil {
		return nil, err
	}

	redemptions, err := e.db.CountUserRedemptions(ctx, dc.ID, userID)
	if err != nil {
		return nil, err
	}

	rules := toDiscountCode(dc)
	if err := discount.Check(rules, discount.Context{
		Now:             e.now(),
		FileID:          file.ID,
		Price:           file.Price,
		UserRedemptions: redemptions,
	}); err != nil {
		return nil, err
	}

	return &DiscountQuote{Code: dc, Result: discount.Calculate(rules, file.Price)}, nil
}

// CreatePurchase records a purchase of a file. Free purchases, including those made
// free by a discount code, complete immediately. Paid ones wait for an admin to verify
// the card-to-card transfer.
func (e *Engine) CreatePurchase(ctx context.Context, user *database.User, in PurchaseInput, meta RequestMeta) (*database.Purchase, error) {
	file, err := e.GetFile(ctx, nil, in.FileID)
	if err != nil {
		return nil, err
	}

	existing, err := e.db.FindActivePurchase(ctx, user.ID, file.ID)
	switch {
	case err == nil && existing.Status == database.PurchaseStatusCompleted:
		return nil, ErrAlreadyPurchased
	case err == nil:
		return nil, ErrPurchasePending
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}

	purchase := &database.Purchase{
		ReferenceCode: newReferenceCode(),
		UserID:        user.ID,
		FileID:        file.ID,
		OriginalPrice: file.Price,
		FinalPrice:    file.Price,
	}

	if code := strings.TrimSpace(in.DiscountCode); code != "" {
		q, err := e.quote(ctx, user.ID, file, code)
		if err != nil {
			return nil, err
		}
		purchase.DiscountCodeID = &q.Code.ID
		purchase.DiscountCode = q.Code
		purchase.DiscountAmount = q.Result.Discount
		purchase.FinalPrice = q.Result.Final
	}

	if purchase.FinalPrice == 0 {
		now := e.now()
		purchase.Status = database.PurchaseStatusCompleted
		purchase.ReviewedAt = &now
	} else {
		purchase.Status = database.PurchaseStatusPending
		purchase.PaymentReference = strings.TrimSpace(in.PaymentReference)
		if purchase.PaymentReference == "" {
			return nil, ErrPaymentReferenceRequired
		}
		if in.BankCardID != nil {
			card, err := e.db.GetBankCard(ctx, *in.BankCardID)
			if errors.Is(err, database.ErrNotFound) || (err == nil && !card.Active) {
				return nil, ErrBankCardNotFound
			}
			if err != nil {
				return nil, err
			}
			purchase.BankCardID = &card.ID
		}
	}

	if err := e.db.CreatePurchase(ctx, purchase); err != nil {
		switch {
		case errors.Is(err, database.ErrPurchaseExists):
			return nil, ErrPurchasePending
		case errors.Is(err, database.ErrDiscountExhausted):
			return nil, discount.ErrUsageLimit
		case errors.Is(err, database.ErrDiscountUserLimit):
			return nil, discount.ErrUserLimit
		}
		return nil, err
	}

	log.Info("created purchase", "reference", purchase.ReferenceCode, "user", user.ID, "file", file.ID, "status", purchase.Status, "final", purchase.FinalPrice)
	e.invalidateUserStats(ctx, user.ID)
	e.logSecurityEvent(ctx, meta, &user.ID, user.Email, database.SecurityEventPurchaseCreated,
		fmt.Sprintf("reference=%s file=%d final=%d", purchase.ReferenceCode, file.ID, purchase.FinalPrice))

	purchase.User = *user
	purchase.File = *file
	e.notifyPurchase(purchase, e.email.SendPurchaseCreated)

	return purchase, nil
}

// ApprovePurchase completes a pending purchase, granting the buyer a license.
func (e *Engine) ApprovePurchase(ctx context.Context, admin *database.User, id uint) (*database.Purchase, error) {
	purchase, err := e.review(ctx, id, database.PurchaseReview{
		Status:     database.PurchaseStatusCompleted,
		ReviewedBy: &admin.ID,
	})
	if err != nil {
		return nil, err
	}
	log.Info("approved purchase", "reference", purchase.ReferenceCode, "admin", admin.ID)
	e.notifyPurchase(purchase, e.email.SendPurchaseApproved)
	return purchase, nil
}

// RejectPurchase rejects a pending purchase and releases its discount code usage.
func (e *Engine) RejectPurchase(ctx context.Context, admin *database.User, id uint, reason string) (*database.Purchase, error) {
	purchase, err := e.review(ctx, id, database.PurchaseReview{
		Status:     database.PurchaseStatusRejected,
		ReviewedBy: &admin.ID,
		Reason:     strings.TrimSpace(reason),
	})
	if err != nil {
		return nil, err
	}
	log.Info("rejected purchase", "reference", purchase.ReferenceCode, "admin", admin.ID)
	e.notifyPurchase(purchase, e.email.SendPurchaseRejected)
	return purchase, nil
}

// ExpirePendingPurchases expires purchases that stayed pending longer than the
// configured expiry and returns how many were expired.
func (e *Engine) ExpirePendingPurchases(ctx context.Context) (int, error) {
	cutoff := e.now().Add(-e.cfg.Purchases.GetPendingExpiry())
	stale, err := e.db.ListStalePendingPurchases(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale purchases: %w", err)
	}

	expired := 0
	for _, p := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		_, err := e.review(ctx, p.ID, database.PurchaseReview{
			Status: database.PurchaseStatusExpired,
			Reason: "not reviewed in time",
		})
		if errors.Is(err, ErrPurchaseNotPending) {
			continue
		}
		if err != nil {
			log.Error("failed to expire purchase", "id", p.ID, "error", err)
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Info("Expired pending purchases", "count", expired, "before", cutoff)
	}
	return expired, nil
}

func (e *Engine) review(ctx context.Context, id uint, review database.PurchaseReview) (*database.Purchase, error) {
	purchase, err := e.db.ReviewPurchase(ctx, id, review)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, ErrPurchaseNotFound
	case errors.Is(err, database.ErrPurchaseNotPending):
		return nil, ErrPurchaseNotPending
	case err != nil:
		return nil, err
	}
	e.invalidateUserStats(ctx, purchase.UserID)
	return purchase, nil
}

// GetPurchase returns a purchase with its associations.
func (e *Engine) GetPurchase(ctx context.Context, id uint) (*database.Purchase, error) {
	purchase, err := e.db.GetPurchase(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrPurchaseNotFound
	}
	return purchase, err
}

// ListUserPurchases returns the purchase history of the user, newest first.
func (e *Engine) ListUserPurchases(ctx context.Context, userID uint) ([]database.Purchase, error) {
	return e.db.ListUserPurchases(ctx, userID)
}

// ListPurchases returns a page of all purchases, optionally filtered by status.
func (e *Engine) ListPurchases(ctx context.Context, status database.PurchaseStatus, page, pageSize int) ([]database.Purchase, int64, error) {
	return e.db.ListPurchases(ctx, status, page, pageSize)
}

// notifyPurchase emails the buyer in the background. The purchase must have its
// user and file loaded.
func (e *Engine) notifyPurchase(p *database.Purchase, send func(email.PurchaseNotification) error) {
	n := email.PurchaseNotification{
		UserEmail:      p.User.Email,
		UserName:       p.User.Name,
		FileTitle:      p.File.Title,
		ReferenceCode:  p.ReferenceCode,
		OriginalPrice:  p.OriginalPrice,
		DiscountAmount: p.DiscountAmount,
		FinalPrice:     p.FinalPrice,
		Completed:      p.Status == database.PurchaseStatusCompleted,
		Reason:         p.RejectReason,
		CreatedAt:      p.CreatedAt,
	}
	go func() {
		if err := send(n); err != nil {
			log.Error("failed to send purchase email", "reference", n.ReferenceCode, "error", err)
		}
	}()
}

func newReferenceCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "NSH-" + strings.ToUpper(id[:10])
}

func toDiscountCode(dc *database.DiscountCode) discount.Code {
	return discount.Code{
		Code:         dc.Code,
		Type:         discount.Type(dc.Type),
		Value:        dc.Value,
		MaxDiscount:  dc.MaxDiscount,
		MinPurchase:  dc.MinPurchase,
		UsageLimit:   dc.UsageLimit,
		UsedCount:    dc.UsedCount,
		PerUserLimit: dc.PerUserLimit,
		FileID:       dc.FileID,
		ValidFrom:    dc.ValidFrom,
		ValidUntil:   dc.ValidUntil,
		Active:       dc.Active,
	}
}
