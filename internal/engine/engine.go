package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/nashr-app/nashr/internal/cache"
	"github.com/nashr-app/nashr/internal/config"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/notify/email"
	"github.com/nashr-app/nashr/internal/scheduler"
	"github.com/nashr-app/nashr/internal/storage"
	"github.com/nashr-app/nashr/internal/viewer"
)

var (
	// ErrEmailTaken indicates that an account with the email already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrPhoneTaken indicates that another account uses the phone number.
	ErrPhoneTaken = errors.New("phone already registered")
	// ErrInvalidCredentials indicates a wrong email or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLocked indicates too many failed logins within the lockout window.
	ErrLocked = errors.New("account temporarily locked")
	// ErrWrongPassword indicates the current password didn't match on a password change.
	ErrWrongPassword = errors.New("current password is wrong")
	// ErrUserNotFound indicates that the user doesn't exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrFileNotFound indicates that the file doesn't exist or isn't published.
	ErrFileNotFound = errors.New("file not found")
	// ErrAlreadyPurchased indicates the user already owns the file.
	ErrAlreadyPurchased = errors.New("file already purchased")
	// ErrPurchasePending indicates the user has a purchase of the file waiting for review.
	ErrPurchasePending = errors.New("purchase pending review")
	// ErrPaymentReferenceRequired indicates a paid purchase without a transfer reference.
	ErrPaymentReferenceRequired = errors.New("payment reference required")
	// ErrPurchaseNotFound indicates that the purchase doesn't exist.
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrPurchaseNotPending indicates the purchase was already reviewed.
	ErrPurchaseNotPending = errors.New("purchase is not pending")
	// ErrDiscountNotFound indicates an unknown discount code.
	ErrDiscountNotFound = errors.New("discount code not found")
	// ErrDiscountCodeTaken indicates a discount code with the same code exists.
	ErrDiscountCodeTaken = errors.New("discount code already exists")
	// ErrBankCardNotFound indicates an unknown or inactive bank card.
	ErrBankCardNotFound = errors.New("bank card not found")
	// ErrBankCardTaken indicates a bank card with the same number exists.
	ErrBankCardTaken = errors.New("bank card already exists")
	// ErrInvalidDocument indicates an upload that isn't a readable PDF.
	ErrInvalidDocument = errors.New("invalid document")
)

// RequestMeta describes the client a request came from, recorded in the security log.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// Engine implements the business operations of the store.
type Engine struct {
	cfg       *config.Config
	db        database.DB
	store     *storage.Store
	cache     *cache.AppCache
	renderer  *viewer.Renderer
	email     *email.NotificationService
	scheduler *scheduler.Scheduler

	now func() time.Time
}

// New creates a new Engine instance.
func New(cfg *config.Config, db database.DB) (*Engine, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	emailService, err := email.New(cfg.Email, cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}

	var watermark *config.WatermarkConfig
	if cfg.Viewer != nil {
		watermark = cfg.Viewer.Watermark
	}

	e := &Engine{
		cfg:       cfg,
		db:        db,
		store:     store,
		cache:     cache.New(cfg.Cache),
		renderer:  viewer.NewRenderer(watermark),
		email:     emailService,
		scheduler: sched,
		now:       time.Now,
	}

	if err := e.setupJobs(); err != nil {
		return nil, fmt.Errorf("failed to setup jobs: %w", err)
	}

	return e, nil
}
