package models

import (
	"fmt"
	"strings"

	"github.com/ccoveille/go-safecast"
	"github.com/dustin/go-humanize"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/engine"
	"github.com/nashr-app/nashr/internal/viewer"
	"github.com/samber/lo"
)

// ToUser converts a database.User to the public account representation.
func ToUser(u *database.User) User {
	return User{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       lo.FromPtr(u.Phone),
		IsAdmin:     u.IsAdmin,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

// ToFile converts a database.File to a catalogue entry. previewPages is the
// effective preview page count of the file.
func ToFile(f *database.File, previewPages int) File {
	size, err := safecast.ToUint64(f.SizeBytes)
	if err != nil {
		size = 0
	}
	return File{
		ID:           f.ID,
		Title:        f.Title,
		Description:  f.Description,
		Author:       f.Author,
		Price:        f.Price,
		TotalPages:   f.TotalPages,
		PreviewPages: min(previewPages, f.TotalPages),
		WordCount:    f.WordCount,
		Size:         humanize.IBytes(size),
		SizeBytes:    f.SizeBytes,
		CreatedAt:    f.CreatedAt,
	}
}

// ToAdminFile converts a database.File including the fields only admins see.
func ToAdminFile(f *database.File, previewPages int) AdminFile {
	return AdminFile{
		File:       ToFile(f, previewPages),
		Published:  f.Published,
		StorageKey: f.StorageKey,
	}
}

// ToPurchasedFiles converts completed purchases to the files they license.
func ToPurchasedFiles(purchases []database.Purchase, previewPages func(int) int) []PurchasedFile {
	return lo.Map(purchases, func(p database.Purchase, _ int) PurchasedFile {
		file := ToFile(&p.File, previewPages(p.File.PreviewPages))
		file.Licensed = lo.ToPtr(true)
		return PurchasedFile{
			File:          file,
			ReferenceCode: p.ReferenceCode,
			PurchasedAt:   lo.FromPtrOr(p.ReviewedAt, p.CreatedAt),
		}
	})
}

// ToViewer converts a viewer policy for the file.
func ToViewer(f *database.File, policy viewer.Policy, watermarked bool) Viewer {
	return Viewer{
		FileID:      f.ID,
		Title:       f.Title,
		TotalPages:  policy.TotalPages,
		PageLimit:   policy.MaxViewablePages(),
		Licensed:    policy.Licensed,
		Preview:     policy.IsPreview(),
		DocumentURL: fmt.Sprintf("/api/files/%d/document", f.ID),
		Watermarked: watermarked,
	}
}

// ToPurchase converts a database.Purchase for its buyer.
func ToPurchase(p *database.Purchase) Purchase {
	out := Purchase{
		ID:               p.ID,
		ReferenceCode:    p.ReferenceCode,
		FileID:           p.FileID,
		FileTitle:        p.File.Title,
		OriginalPrice:    p.OriginalPrice,
		DiscountAmount:   p.DiscountAmount,
		FinalPrice:       p.FinalPrice,
		PaymentReference: p.PaymentReference,
		Status:           string(p.Status),
		RejectReason:     p.RejectReason,
		CreatedAt:        p.CreatedAt,
		ReviewedAt:       p.ReviewedAt,
	}
	if p.DiscountCode != nil {
		out.DiscountCode = p.DiscountCode.Code
	}
	return out
}

// ToPurchases converts a slice of purchases for their buyer.
func ToPurchases(purchases []database.Purchase) []Purchase {
	return lo.Map(purchases, func(p database.Purchase, _ int) Purchase { return ToPurchase(&p) })
}

// ToAdminPurchases converts a slice of purchases for admins.
func ToAdminPurchases(purchases []database.Purchase) []AdminPurchase {
	return lo.Map(purchases, func(p database.Purchase, _ int) AdminPurchase {
		item := AdminPurchase{
			Purchase:   ToPurchase(&p),
			UserID:     p.UserID,
			UserEmail:  p.User.Email,
			UserName:   p.User.Name,
			ReviewedBy: p.ReviewedBy,
		}
		if p.BankCard != nil {
			item.BankCard = strings.TrimSpace(p.BankCard.BankName + " " + FormatCardNumber(p.BankCard.CardNumber))
		}
		return item
	})
}

// ToBankCards converts cards for buyers.
func ToBankCards(cards []database.BankCard) []BankCard {
	return lo.Map(cards, func(c database.BankCard, _ int) BankCard { return toBankCard(&c) })
}

// ToAdminBankCards converts cards for admins.
func ToAdminBankCards(cards []database.BankCard) []AdminBankCard {
	return lo.Map(cards, func(c database.BankCard, _ int) AdminBankCard {
		return AdminBankCard{BankCard: toBankCard(&c), Active: c.Active, SortOrder: c.SortOrder}
	})
}

func toBankCard(c *database.BankCard) BankCard {
	return BankCard{
		ID:         c.ID,
		CardNumber: FormatCardNumber(c.CardNumber),
		HolderName: c.HolderName,
		BankName:   c.BankName,
		IBAN:       c.IBAN,
	}
}

// FormatCardNumber groups a 16 digit card number in blocks of four.
func FormatCardNumber(number string) string {
	if len(number) != 16 {
		return number
	}
	return strings.Join(lo.ChunkString(number, 4), "-")
}

// ToDiscountCode converts a discount code for admins.
func ToDiscountCode(dc *database.DiscountCode) DiscountCode {
	return DiscountCode{
		ID:           dc.ID,
		Code:         dc.Code,
		Description:  dc.Description,
		Type:         string(dc.Type),
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
		CreatedAt:    dc.CreatedAt,
	}
}

// ToDiscountCodes converts a slice of discount codes for admins.
func ToDiscountCodes(codes []database.DiscountCode) []DiscountCode {
	return lo.Map(codes, func(dc database.DiscountCode, _ int) DiscountCode { return ToDiscountCode(&dc) })
}

// ToDiscountQuote converts a validated discount.
func ToDiscountQuote(q *engine.DiscountQuote) DiscountQuote {
	return DiscountQuote{
		Code:           q.Code.Code,
		Description:    q.Code.Description,
		Type:           string(q.Code.Type),
		Value:          q.Code.Value,
		OriginalPrice:  q.Result.Original,
		DiscountAmount: q.Result.Discount,
		FinalPrice:     q.Result.Final,
	}
}

// ToSecurityLogs converts security log entries for their owner.
func ToSecurityLogs(logs []database.SecurityLog) []SecurityLog {
	return lo.Map(logs, func(l database.SecurityLog, _ int) SecurityLog {
		return SecurityLog{
			ID:        l.ID,
			Event:     string(l.Event),
			IP:        l.IP,
			UserAgent: l.UserAgent,
			Details:   l.Details,
			CreatedAt: l.CreatedAt,
		}
	})
}
