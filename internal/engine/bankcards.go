package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/nashr-app/nashr/internal/database"
)

// ErrInvalidCardNumber indicates a card number that isn't 16 digits with a valid check digit.
var ErrInvalidCardNumber = errors.New("invalid card number")

// BankCardInput holds the data of a destination card.
type BankCardInput struct {
	CardNumber string
	HolderName string
	BankName   string
	IBAN       string
	SortOrder  int
}

// PublicBankCards returns the active cards buyers can transfer money to.
func (e *Engine) PublicBankCards(ctx context.Context) ([]database.BankCard, error) {
	return e.cache.GetBankCards(ctx, func(ctx context.Context) ([]database.BankCard, error) {
		return e.db.ListBankCards(ctx, true)
	})
}

// ListBankCards returns every card, for admins.
func (e *Engine) ListBankCards(ctx context.Context) ([]database.BankCard, error) {
	return e.db.ListBankCards(ctx, false)
}

// CreateBankCard adds an active destination card.
func (e *Engine) CreateBankCard(ctx context.Context, in BankCardInput) (*database.BankCard, error) {
	number := NormalizeCardNumber(in.CardNumber)
	if !ValidCardNumber(number) {
		return nil, ErrInvalidCardNumber
	}

	card := &database.BankCard{
		CardNumber: number,
		HolderName: strings.TrimSpace(in.HolderName),
		BankName:   strings.TrimSpace(in.BankName),
		IBAN:       strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(in.IBAN), " ", "")),
		Active:     true,
		SortOrder:  in.SortOrder,
	}
	if err := e.db.CreateBankCard(ctx, card); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrBankCardTaken
		}
		return nil, fmt.Errorf("failed to create bank card: %w", err)
	}

	e.invalidateBankCards(ctx)
	log.Info("added bank card", "id", card.ID, "bank", card.BankName)
	return card, nil
}

// DeleteBankCard removes a destination card.
func (e *Engine) DeleteBankCard(ctx context.Context, id uint) error {
	if err := e.db.DeleteBankCard(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrBankCardNotFound
		}
		return err
	}
	e.invalidateBankCards(ctx)
	return nil
}

// NormalizeCardNumber strips separators and converts Persian and Arabic digits.
func NormalizeCardNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		switch {
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCardNumber reports whether number is 16 ASCII digits passing the Luhn check.
func ValidCardNumber(number string) bool {
	if len(number) != 16 {
		return false
	}
	sum := 0
	for i, r := range number {
		if r < '0' || r > '9' {
			return false
		}
		d := int(r - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

func (e *Engine) invalidateBankCards(ctx context.Context) {
	if err := e.cache.InvalidateBankCards(ctx); err != nil {
		log.Warn("failed to invalidate bank card cache", "error", err)
	}
}
