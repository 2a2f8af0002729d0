package database

import (
	"context"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
)

// BankCard is a destination card for card-to-card payments.
type BankCard struct {
	gorm.Model
	// CardNumber holds the 16 digits without separators.
	CardNumber string `gorm:"uniqueIndex;not null"`
	HolderName string `gorm:"not null"`
	BankName   string
	IBAN       string
	Active     bool
	SortOrder  int
}

// BankCardDB defines the interface for bank-card-related database operations.
type BankCardDB interface {
	CreateBankCard(ctx context.Context, card *BankCard) error
	GetBankCard(ctx context.Context, id uint) (*BankCard, error)
	ListBankCards(ctx context.Context, activeOnly bool) ([]BankCard, error)
	DeleteBankCard(ctx context.Context, id uint) error
}

func (c *Client) CreateBankCard(ctx context.Context, card *BankCard) error {
	if err := c.withContext(ctx).Create(card).Error; err != nil {
		log.Error("failed to create bank card", "error", err)
		return translateError(err)
	}
	return nil
}

func (c *Client) GetBankCard(ctx context.Context, id uint) (*BankCard, error) {
	var card BankCard
	if err := c.withContext(ctx).First(&card, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &card, nil
}

// ListBankCards returns the cards ordered for display.
func (c *Client) ListBankCards(ctx context.Context, activeOnly bool) ([]BankCard, error) {
	var cards []BankCard
	query := c.withContext(ctx).Order("sort_order ASC, id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	if err := query.Find(&cards).Error; err != nil {
		log.Error("failed to list bank cards", "error", err)
		return nil, err
	}
	return cards, nil
}

func (c *Client) DeleteBankCard(ctx context.Context, id uint) error {
	result := c.withContext(ctx).Delete(&BankCard{}, id)
	if result.Error != nil {
		log.Error("failed to delete bank card", "error", result.Error, "id", id)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
