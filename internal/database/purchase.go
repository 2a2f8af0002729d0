package database

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPurchaseExists is returned when the user already has a pending or completed purchase of the file.
	ErrPurchaseExists = errors.New("purchase already exists")
	// ErrPurchaseNotPending is returned when reviewing a purchase that isn't pending anymore.
	ErrPurchaseNotPending = errors.New("purchase is not pending")
)

// PurchaseStatus represents the state of a purchase.
type PurchaseStatus string

const (
	// PurchaseStatusPending waits for the card-to-card transfer to be verified.
	PurchaseStatusPending PurchaseStatus = "pending"
	// PurchaseStatusCompleted grants a license for the file.
	PurchaseStatusCompleted PurchaseStatus = "completed"
	// PurchaseStatusRejected means the transfer couldn't be verified.
	PurchaseStatusRejected PurchaseStatus = "rejected"
	// PurchaseStatusExpired means the purchase was never reviewed in time.
	PurchaseStatusExpired PurchaseStatus = "expired"
)

// Purchase represents a user's purchase of a file.
type Purchase struct {
	gorm.Model
	// ReferenceCode is shown to the buyer and admins to identify the purchase.
	ReferenceCode  string `gorm:"uniqueIndex;not null"`
	UserID         uint   `gorm:"not null;index"`
	User           User
	FileID         uint `gorm:"not null;index"`
	File           File
	OriginalPrice  int64
	DiscountAmount int64
	FinalPrice     int64
	DiscountCodeID *uint `gorm:"index"`
	DiscountCode   *DiscountCode
	// BankCardID is the card the buyer transferred the money to.
	BankCardID *uint
	BankCard   *BankCard
	// PaymentReference is the transfer tracking code supplied by the buyer.
	PaymentReference string
	Status           PurchaseStatus `gorm:"not null;index"`
	ReviewedBy       *uint
	ReviewedAt       *time.Time
	RejectReason     string
}

// PurchaseReview describes the outcome of reviewing a pending purchase.
type PurchaseReview struct {
	Status     PurchaseStatus
	ReviewedBy *uint
	Reason     string
}

// UserStats aggregates a user's purchases for the dashboard.
type UserStats struct {
	PurchasedFiles   int64      `json:"purchasedFiles"`
	PendingPurchases int64      `json:"pendingPurchases"`
	TotalSpent       int64      `json:"totalSpent"`
	TotalSaved       int64      `json:"totalSaved"`
	LastPurchaseAt   *time.Time `json:"lastPurchaseAt,omitempty"`
}

// PurchaseDB defines the interface for purchase-related database operations.
type PurchaseDB interface {
	CreatePurchase(ctx context.Context, purchase *Purchase) error
	GetPurchase(ctx context.Context, id uint) (*Purchase, error)
	FindActivePurchase(ctx context.Context, userID, fileID uint) (*Purchase, error)
	HasLicense(ctx context.Context, userID, fileID uint) (bool, error)
	ListUserPurchases(ctx context.Context, userID uint) ([]Purchase, error)
	ListPurchasedFiles(ctx context.Context, userID uint) ([]Purchase, error)
	ListPurchases(ctx context.Context, status PurchaseStatus, page, pageSize int) ([]Purchase, int64, error)
	ListStalePendingPurchases(ctx context.Context, before time.Time) ([]Purchase, error)
	ReviewPurchase(ctx context.Context, id uint, review PurchaseReview) (*Purchase, error)
	GetUserStats(ctx context.Context, userID uint) (*UserStats, error)
}

var activeStatuses = []PurchaseStatus{PurchaseStatusPending, PurchaseStatusCompleted}

// CreatePurchase stores a purchase. If it uses a discount code, one usage is reserved
// and the per-user limit is checked in the same transaction. Fails with ErrPurchaseExists
// if the user already has an active purchase of the file.
func (c *Client) CreatePurchase(ctx context.Context, purchase *Purchase) error {
	err := c.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Purchase{}).
			Where("user_id = ? AND file_id = ? AND status IN ?", purchase.UserID, purchase.FileID, activeStatuses).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrPurchaseExists
		}

		if purchase.DiscountCodeID != nil {
			if err := reserveDiscountUsage(tx, *purchase.DiscountCodeID); err != nil {
				return err
			}
			if err := checkUserRedemptions(tx, *purchase.DiscountCodeID, purchase.UserID); err != nil {
				return err
			}
		}

		return tx.Omit(clause.Associations).Create(purchase).Error
	})
	if err != nil && !errors.Is(err, ErrPurchaseExists) && !errors.Is(err, ErrDiscountExhausted) &&
		!errors.Is(err, ErrDiscountUserLimit) {
		log.Error("failed to create purchase", "error", err, "user", purchase.UserID, "file", purchase.FileID)
		return translateError(err)
	}
	return err
}

func (c *Client) GetPurchase(ctx context.Context, id uint) (*Purchase, error) {
	var purchase Purchase
	err := c.withContext(ctx).
		Preload("User").
		Preload("File").
		Preload("DiscountCode").
		Preload("BankCard").
		First(&purchase, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &purchase, nil
}

// FindActivePurchase returns the pending or completed purchase of a file by a user.
func (c *Client) FindActivePurchase(ctx context.Context, userID, fileID uint) (*Purchase, error) {
	var purchase Purchase
	err := c.withContext(ctx).
		Where("user_id = ? AND file_id = ? AND status IN ?", userID, fileID, activeStatuses).
		Order("created_at DESC").
		First(&purchase).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &purchase, nil
}

// HasLicense reports whether the user has a completed purchase of the file.
func (c *Client) HasLicense(ctx context.Context, userID, fileID uint) (bool, error) {
	var count int64
	err := c.withContext(ctx).Model(&Purchase{}).
		Where("user_id = ? AND file_id = ? AND status = ?", userID, fileID, PurchaseStatusCompleted).
		Count(&count).Error
	if err != nil {
		log.Error("failed to check license", "error", err, "user", userID, "file", fileID)
		return false, err
	}
	return count > 0, nil
}

func (c *Client) ListUserPurchases(ctx context.Context, userID uint) ([]Purchase, error) {
	var purchases []Purchase
	err := c.withContext(ctx).
		Preload("File").
		Preload("DiscountCode").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&purchases).Error
	if err != nil {
		log.Error("failed to list user purchases", "error", err, "user", userID)
		return nil, err
	}
	return purchases, nil
}

// ListPurchasedFiles returns the completed purchases of a user with their files.
func (c *Client) ListPurchasedFiles(ctx context.Context, userID uint) ([]Purchase, error) {
	var purchases []Purchase
	err := c.withContext(ctx).
		Preload("File").
		Where("user_id = ? AND status = ?", userID, PurchaseStatusCompleted).
		Order("created_at DESC").
		Find(&purchases).Error
	if err != nil {
		log.Error("failed to list purchased files", "error", err, "user", userID)
		return nil, err
	}
	return purchases, nil
}

// ListPurchases returns a page of purchases, optionally filtered by status.
func (c *Client) ListPurchases(ctx context.Context, status PurchaseStatus, page, pageSize int) ([]Purchase, int64, error) {
	var purchases []Purchase
	var total int64

	scoped := func() *gorm.DB {
		query := c.withContext(ctx).Model(&Purchase{})
		if status != "" {
			query = query.Where("status = ?", status)
		}
		return query
	}
	if err := scoped().Count(&total).Error; err != nil {
		log.Error("failed to count purchases", "error", err)
		return nil, 0, err
	}

	_, pageSize, offset := paginate(page, pageSize)
	err := scoped().
		Preload("User").
		Preload("File").
		Preload("DiscountCode").
		Preload("BankCard").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&purchases).Error
	if err != nil {
		log.Error("failed to list purchases", "error", err)
		return nil, 0, err
	}
	return purchases, total, nil
}

// ListStalePendingPurchases returns pending purchases created before the given time.
func (c *Client) ListStalePendingPurchases(ctx context.Context, before time.Time) ([]Purchase, error) {
	var purchases []Purchase
	err := c.withContext(ctx).
		Where("status = ? AND created_at < ?", PurchaseStatusPending, before).
		Find(&purchases).Error
	if err != nil {
		log.Error("failed to list stale purchases", "error", err)
		return nil, err
	}
	return purchases, nil
}

// ReviewPurchase moves a pending purchase to the reviewed status. Any outcome other than
// completed releases the discount usage reserved by the purchase.
func (c *Client) ReviewPurchase(ctx context.Context, id uint, review PurchaseReview) (*Purchase, error) {
	err := c.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		var purchase Purchase
		if err := tx.First(&purchase, id).Error; err != nil {
			return err
		}

		now := time.Now()
		result := tx.Model(&Purchase{}).
			Where("id = ? AND status = ?", id, PurchaseStatusPending).
			Updates(map[string]any{
				"status":        review.Status,
				"reviewed_by":   review.ReviewedBy,
				"reviewed_at":   now,
				"reject_reason": review.Reason,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrPurchaseNotPending
		}

		if review.Status != PurchaseStatusCompleted && purchase.DiscountCodeID != nil {
			return releaseDiscountUsage(tx, *purchase.DiscountCodeID)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrPurchaseNotPending) {
			log.Error("failed to review purchase", "error", err, "purchase", id)
		}
		return nil, translateError(err)
	}
	return c.GetPurchase(ctx, id)
}

// GetUserStats aggregates the purchases of a user.
func (c *Client) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	var stats UserStats
	err := c.withContext(ctx).Model(&Purchase{}).
		Select(`
			COUNT(CASE WHEN status = ? THEN 1 END) AS purchased_files,
			COUNT(CASE WHEN status = ? THEN 1 END) AS pending_purchases,
			COALESCE(SUM(CASE WHEN status = ? THEN final_price ELSE 0 END), 0) AS total_spent,
			COALESCE(SUM(CASE WHEN status = ? THEN discount_amount ELSE 0 END), 0) AS total_saved`,
			PurchaseStatusCompleted, PurchaseStatusPending, PurchaseStatusCompleted, PurchaseStatusCompleted).
		Where("user_id = ?", userID).
		Scan(&stats).Error
	if err != nil {
		log.Error("failed to aggregate user stats", "error", err, "user", userID)
		return nil, err
	}

	var last Purchase
	err = c.withContext(ctx).
		Where("user_id = ? AND status = ?", userID, PurchaseStatusCompleted).
		Order("created_at DESC").
		First(&last).Error
	switch {
	case err == nil:
		stats.LastPurchaseAt = &last.CreatedAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	return &stats, nil
}
