package models

import "time"

// User is the account as seen by its owner.
type User struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	IsAdmin     bool       `json:"isAdmin"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// File is a catalogue entry.
type File struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Author       string    `json:"author,omitempty"`
	Price        int64     `json:"price"`
	TotalPages   int       `json:"totalPages"`
	PreviewPages int       `json:"previewPages"`
	WordCount    int       `json:"wordCount"`
	Size         string    `json:"size"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAt    time.Time `json:"createdAt"`
	// Licensed is only set when the request has a user.
	Licensed *bool `json:"licensed,omitempty"`
}

// AdminFile adds the fields only admins see.
type AdminFile struct {
	File
	Published  bool   `json:"published"`
	StorageKey string `json:"storageKey"`
}

// PurchasedFile is a file the user holds a license for.
type PurchasedFile struct {
	File
	ReferenceCode string    `json:"referenceCode"`
	PurchasedAt   time.Time `json:"purchasedAt"`
}

// Viewer describes what the viewer may display of a file.
type Viewer struct {
	FileID      uint   `json:"fileId"`
	Title       string `json:"title"`
	TotalPages  int    `json:"totalPages"`
	PageLimit   int    `json:"pageLimit"`
	Licensed    bool   `json:"licensed"`
	Preview     bool   `json:"preview"`
	DocumentURL string `json:"documentUrl"`
	Page        *int   `json:"page,omitempty"`
	PageAllowed *bool  `json:"pageAllowed,omitempty"`
	Watermarked bool   `json:"watermarked"`
}

// Purchase is a purchase as seen by the buyer.
type Purchase struct {
	ID               uint       `json:"id"`
	ReferenceCode    string     `json:"referenceCode"`
	FileID           uint       `json:"fileId"`
	FileTitle        string     `json:"fileTitle"`
	OriginalPrice    int64      `json:"originalPrice"`
	DiscountAmount   int64      `json:"discountAmount"`
	FinalPrice       int64      `json:"finalPrice"`
	DiscountCode     string     `json:"discountCode,omitempty"`
	PaymentReference string     `json:"paymentReference,omitempty"`
	Status           string     `json:"status"`
	RejectReason     string     `json:"rejectReason,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	ReviewedAt       *time.Time `json:"reviewedAt,omitempty"`
}

// AdminPurchase adds the buyer and the destination card.
type AdminPurchase struct {
	Purchase
	UserID     uint   `json:"userId"`
	UserEmail  string `json:"userEmail"`
	UserName   string `json:"userName"`
	BankCard   string `json:"bankCard,omitempty"`
	ReviewedBy *uint  `json:"reviewedBy,omitempty"`
}

// BankCard is a destination card for card-to-card transfers.
type BankCard struct {
	ID         uint   `json:"id"`
	CardNumber string `json:"cardNumber"`
	HolderName string `json:"holderName"`
	BankName   string `json:"bankName,omitempty"`
	IBAN       string `json:"iban,omitempty"`
}

// AdminBankCard adds the display settings.
type AdminBankCard struct {
	BankCard
	Active    bool `json:"active"`
	SortOrder int  `json:"sortOrder"`
}

// DiscountCode is the admin view of a discount code.
type DiscountCode struct {
	ID           uint       `json:"id"`
	Code         string     `json:"code"`
	Description  string     `json:"description,omitempty"`
	Type         string     `json:"type"`
	Value        int64      `json:"value"`
	MaxDiscount  int64      `json:"maxDiscount"`
	MinPurchase  int64      `json:"minPurchase"`
	UsageLimit   int        `json:"usageLimit"`
	UsedCount    int        `json:"usedCount"`
	PerUserLimit int        `json:"perUserLimit"`
	FileID       *uint      `json:"fileId,omitempty"`
	ValidFrom    *time.Time `json:"validFrom,omitempty"`
	ValidUntil   *time.Time `json:"validUntil,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// DiscountQuote is the result of validating a code for a file.
type DiscountQuote struct {
	Code           string `json:"code"`
	Description    string `json:"description,omitempty"`
	Type           string `json:"type"`
	Value          int64  `json:"value"`
	OriginalPrice  int64  `json:"originalPrice"`
	DiscountAmount int64  `json:"discountAmount"`
	FinalPrice     int64  `json:"finalPrice"`
}

// SecurityLog is an entry of the user's security log.
type SecurityLog struct {
	ID        uint      `json:"id"`
	Event     string    `json:"event"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
