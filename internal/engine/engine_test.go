package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nashr-app/nashr/internal/config"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/discount"
	"github.com/nashr-app/nashr/internal/pdftest"
	"github.com/nashr-app/nashr/internal/scheduler"
	"github.com/nashr-app/nashr/internal/viewer"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testPassword = "secret123"

var meta = RequestMeta{IP: "127.0.0.1", UserAgent: "engine-test"}

type EngineTestSuite struct {
	suite.Suite
	ctx    context.Context
	db     *database.Client
	engine *Engine
	files  string
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		ServerURL:   "http://localhost:5173",
		SessionKey:  "0123456789abcdef0123456789abcdef",
		AdminEmails: []string{"admin@example.com"},
		Database:    &config.DatabaseConfig{Path: filepath.Join(dir, "nashr.db")},
		Storage:     &config.StorageConfig{Path: filepath.Join(dir, "files"), MaxUploadSize: 10 << 20},
		Cache:       &config.CacheConfig{Type: config.CacheTypeMemory, StatsTTL: time.Minute},
		Viewer: &config.ViewerConfig{
			DefaultPreviewPages: 2,
			Watermark:           &config.WatermarkConfig{Enabled: true, Opacity: 0.2, FontSize: 20, Rotation: 45},
		},
		Security:  &config.SecurityConfig{MaxFailedLogins: 3, LockoutWindow: 15 * time.Minute, LogRetentionDays: 30},
		Purchases: &config.PurchasesConfig{PendingExpiryHours: 24},
		Jobs:      &config.JobsConfig{PruneSchedule: "30 3 * * *", ExpireSchedule: "0 * * * *"},
		Email:     &config.EmailConfig{Enabled: false},
	}
}

func (s *EngineTestSuite) SetupTest() {
	dir := s.T().TempDir()
	cfg := testConfig(dir)

	db, err := database.New(cfg.Database.Path)
	s.Require().NoError(err)

	e, err := New(cfg, db)
	s.Require().NoError(err)
	e.scheduler.Start()

	s.ctx = context.Background()
	s.db = db
	s.engine = e
	s.files = cfg.Storage.Path
}

func (s *EngineTestSuite) TearDownTest() {
	s.NoError(s.engine.Close())
	s.NoError(s.db.Close())
}

func (s *EngineTestSuite) register(email string) *database.User {
	user, err := s.engine.Register(s.ctx, RegisterInput{Name: "Reader", Email: email, Password: testPassword}, meta)
	s.Require().NoError(err)
	return user
}

func (s *EngineTestSuite) importFile(title string, pages int, price int64) *database.File {
	file, err := s.engine.ImportFile(s.ctx, bytes.NewReader(pdftest.Document(s.T(), title, pages)), FileInput{
		Price:     price,
		Published: true,
		FileName:  "upload.pdf",
	})
	s.Require().NoError(err)
	return file
}

func (s *EngineTestSuite) createCode(in DiscountInput) *database.DiscountCode {
	dc, err := s.engine.CreateDiscountCode(s.ctx, in)
	s.Require().NoError(err)
	return dc
}

func (s *EngineTestSuite) storedFiles() []os.DirEntry {
	entries, err := os.ReadDir(s.files)
	s.Require().NoError(err)
	return entries
}

func (s *EngineTestSuite) TestRegister() {
	user := s.register("Reader@Example.com")
	s.Equal("reader@example.com", user.Email)
	s.False(user.IsAdmin)
	s.NotEqual(testPassword, user.PasswordHash)

	_, err := s.engine.Register(s.ctx, RegisterInput{Email: "reader@example.com", Password: testPassword}, meta)
	s.ErrorIs(err, ErrEmailTaken)

	admin := s.register("admin@example.com")
	s.True(admin.IsAdmin)

	_, err = s.engine.Register(s.ctx, RegisterInput{Email: "a@example.com", Phone: "09121234567", Password: testPassword}, meta)
	s.Require().NoError(err)
	_, err = s.engine.Register(s.ctx, RegisterInput{Email: "b@example.com", Phone: "09121234567", Password: testPassword}, meta)
	s.ErrorIs(err, ErrPhoneTaken)
}

func (s *EngineTestSuite) TestAuthenticate_Lockout() {
	user := s.register("reader@example.com")

	_, err := s.engine.Authenticate(s.ctx, "nobody@example.com", testPassword, meta)
	s.ErrorIs(err, ErrInvalidCredentials)

	got, err := s.engine.Authenticate(s.ctx, "READER@example.com", testPassword, meta)
	s.Require().NoError(err)
	s.Equal(user.ID, got.ID)
	s.NotNil(got.LastLoginAt)

	for range 3 {
		_, err := s.engine.Authenticate(s.ctx, "reader@example.com", "wrong-password1", meta)
		s.ErrorIs(err, ErrInvalidCredentials)
	}

	_, err = s.engine.Authenticate(s.ctx, "reader@example.com", testPassword, meta)
	s.ErrorIs(err, ErrLocked)

	logs, total, err := s.engine.SecurityLogs(s.ctx, user.ID, 1, 50)
	s.Require().NoError(err)
	s.EqualValues(len(logs), total)
	events := lo.Map(logs, func(l database.SecurityLog, _ int) database.SecurityEvent { return l.Event })
	s.Contains(events, database.SecurityEventRegister)
	s.Contains(events, database.SecurityEventLoginSuccess)
	s.Contains(events, database.SecurityEventLoginFailed)
	s.Contains(events, database.SecurityEventAccountLocked)
}

func (s *EngineTestSuite) TestProfileAndPassword() {
	user := s.register("reader@example.com")
	other, err := s.engine.Register(s.ctx, RegisterInput{Email: "other@example.com", Phone: "09120000000", Password: testPassword}, meta)
	s.Require().NoError(err)

	_, err = s.engine.UpdateProfile(s.ctx, user, ProfileInput{Name: "New", Phone: *other.Phone}, meta)
	s.ErrorIs(err, ErrPhoneTaken)

	updated, err := s.engine.UpdateProfile(s.ctx, user, ProfileInput{Name: " New Name ", Phone: "09351111111"}, meta)
	s.Require().NoError(err)
	s.Equal("New Name", updated.Name)
	s.Equal("09351111111", lo.FromPtr(updated.Phone))

	s.ErrorIs(s.engine.ChangePassword(s.ctx, updated, "not-it-123", "newpass456", meta), ErrWrongPassword)
	s.Require().NoError(s.engine.ChangePassword(s.ctx, updated, testPassword, "newpass456", meta))

	_, err = s.engine.Authenticate(s.ctx, "reader@example.com", "newpass456", meta)
	s.NoError(err)
}

func (s *EngineTestSuite) TestSetAdmin() {
	s.register("reader@example.com")

	user, err := s.engine.SetAdmin(s.ctx, "reader@example.com", true)
	s.Require().NoError(err)
	s.True(user.IsAdmin)

	_, err = s.engine.SetAdmin(s.ctx, "missing@example.com", true)
	s.ErrorIs(err, ErrUserNotFound)
}

func (s *EngineTestSuite) TestImportFile() {
	file := s.importFile("The Sample Book", 5, 50000)
	s.Equal("The Sample Book", file.Title)
	s.Equal(5, file.TotalPages)
	s.Positive(file.WordCount)
	s.Positive(file.SizeBytes)
	s.Len(s.storedFiles(), 1)

	_, err := s.engine.ImportFile(s.ctx, strings.NewReader("not a pdf at all"), FileInput{Title: "Broken"})
	s.ErrorIs(err, ErrInvalidDocument)
	s.Len(s.storedFiles(), 1, "rejected upload must be removed")

	named, err := s.engine.ImportFile(s.ctx, bytes.NewReader(pdftest.Document(s.T(), "", 1)), FileInput{FileName: "dir/Poems.pdf"})
	s.Require().NoError(err)
	s.Equal("Poems", named.Title)
}

func (s *EngineTestSuite) TestViewerPolicy() {
	file := s.importFile("Book", 5, 50000)
	hidden, err := s.engine.ImportFile(s.ctx, bytes.NewReader(pdftest.Document(s.T(), "Hidden", 3)), FileInput{Price: 1000})
	s.Require().NoError(err)

	_, policy, err := s.engine.ViewerPolicy(s.ctx, nil, file.ID)
	s.Require().NoError(err)
	s.Equal(viewer.Policy{TotalPages: 5, PreviewPages: 2}, policy)
	s.True(policy.IsPreview())

	_, _, err = s.engine.ViewerPolicy(s.ctx, nil, hidden.ID)
	s.ErrorIs(err, ErrFileNotFound)

	admin := s.register("admin@example.com")
	_, policy, err = s.engine.ViewerPolicy(s.ctx, admin, hidden.ID)
	s.Require().NoError(err)
	s.True(policy.Licensed)
	s.Equal(3, policy.MaxViewablePages())

	files, err := s.engine.ListFiles(s.ctx, false)
	s.Require().NoError(err)
	s.Len(files, 1)

	s.Require().NoError(s.engine.SetFilePublished(s.ctx, hidden.ID, true))
	files, err = s.engine.ListFiles(s.ctx, false)
	s.Require().NoError(err)
	s.Len(files, 2)

	s.ErrorIs(s.engine.SetFilePublished(s.ctx, 999, true), ErrFileNotFound)
}

func (s *EngineTestSuite) TestPurchaseLifecycle() {
	user := s.register("reader@example.com")
	admin := s.register("admin@example.com")
	file := s.importFile("Book", 5, 50000)

	_, err := s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: file.ID}, meta)
	s.ErrorIs(err, ErrPaymentReferenceRequired)

	_, err = s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: 999, PaymentReference: "123"}, meta)
	s.ErrorIs(err, ErrFileNotFound)

	bad := uint(999)
	_, err = s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: file.ID, PaymentReference: "123", BankCardID: &bad}, meta)
	s.ErrorIs(err, ErrBankCardNotFound)

	card, err := s.engine.CreateBankCard(s.ctx, BankCardInput{CardNumber: "6037-9912-3456-7893", HolderName: "Nashr"})
	s.Require().NoError(err)

	purchase, err := s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: file.ID, PaymentReference: " 998877 ", BankCardID: &card.ID}, meta)
	s.Require().NoError(err)
	s.Equal(database.PurchaseStatusPending, purchase.Status)
	s.Equal("998877", purchase.PaymentReference)
	s.True(strings.HasPrefix(purchase.ReferenceCode, "NSH-"))
	s.EqualValues(50000, purchase.FinalPrice)

	_, err = s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: file.ID, PaymentReference: "1"}, meta)
	s.ErrorIs(err, ErrPurchasePending)

	stats, err := s.engine.UserStats(s.ctx, user.ID)
	s.Require().NoError(err)
	s.EqualValues(1, stats.PendingPurchases)
	s.EqualValues(0, stats.PurchasedFiles)

	_, policy, err := s.engine.ViewerPolicy(s.ctx, user, file.ID)
	s.Require().NoError(err)
	s.False(policy.Licensed)

	approved, err := s.engine.ApprovePurchase(s.ctx, admin, purchase.ID)
	s.Require().NoError(err)
	s.Equal(database.PurchaseStatusCompleted, approved.Status)
	s.Equal(admin.ID, lo.FromPtr(approved.ReviewedBy))

	_, err = s.engine.ApprovePurchase(s.ctx, admin, purchase.ID)
	s.ErrorIs(err, ErrPurchaseNotPending)
	_, err = s.engine.RejectPurchase(s.ctx, admin, 999, "no")
	s.ErrorIs(err, ErrPurchaseNotFound)

	_, err = s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: file.ID, PaymentReference: "1"}, meta)
	s.ErrorIs(err, ErrAlreadyPurchased)

	_, policy, err = s.engine.ViewerPolicy(s.ctx, user, file.ID)
	s.Require().NoError(err)
	s.True(policy.Licensed)

	stats, err = s.engine.UserStats(s.ctx, user.ID)
	s.Require().NoError(err)
	s.EqualValues(1, stats.PurchasedFiles)
	s.EqualValues(0, stats.PendingPurchases)
	s.EqualValues(50000, stats.TotalSpent)

	owned, err := s.engine.ListPurchasedFiles(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Require().Len(owned, 1)
	s.Equal("Book", owned[0].File.Title)
}

func (s *EngineTestSuite) TestPurchase_FreeWithDiscount() {
	user := s.register("reader@example.com")
	other := s.register("other@example.com")
	file := s.importFile("Book", 3, 20000)
	s.createCode(DiscountInput{Code: "gift 2024", Type: discount.TypeFree, UsageLimit: 1})

	quote, err := s.engine.ValidateDiscount(s.ctx, user.ID, file.ID, "Gift2024")
	s.Require().NoError(err)
	s.Equal(discount.Result{Original: 20000, Discount: 20000, Final: 0}, quote.Result)

	purchase, err := s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: file.ID, DiscountCode: "GIFT2024"}, meta)
	s.Require().NoError(err)
	s.Equal(database.PurchaseStatusCompleted, purchase.Status)
	s.EqualValues(0, purchase.FinalPrice)
	s.EqualValues(20000, purchase.DiscountAmount)

	_, err = s.engine.CreatePurchase(s.ctx, other, PurchaseInput{FileID: file.ID, DiscountCode: "GIFT2024"}, meta)
	s.ErrorIs(err, discount.ErrUsageLimit)

	_, err = s.engine.ValidateDiscount(s.ctx, user.ID, file.ID, "nope")
	s.ErrorIs(err, ErrDiscountNotFound)
}

func (s *EngineTestSuite) TestPurchase_RejectReleasesDiscount() {
	user := s.register("reader@example.com")
	admin := s.register("admin@example.com")
	file := s.importFile("Book", 3, 100000)
	code := s.createCode(DiscountInput{Code: "HALF", Type: discount.TypePercentage, Value: 50, MaxDiscount: 30000, UsageLimit: 1})

	purchase, err := s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: file.ID, DiscountCode: "half", PaymentReference: "42"}, meta)
	s.Require().NoError(err)
	s.EqualValues(30000, purchase.DiscountAmount)
	s.EqualValues(70000, purchase.FinalPrice)

	reserved, err := s.db.GetDiscountCodeByID(s.ctx, code.ID)
	s.Require().NoError(err)
	s.Equal(1, reserved.UsedCount)

	rejected, err := s.engine.RejectPurchase(s.ctx, admin, purchase.ID, " transfer not found ")
	s.Require().NoError(err)
	s.Equal(database.PurchaseStatusRejected, rejected.Status)
	s.Equal("transfer not found", rejected.RejectReason)

	released, err := s.db.GetDiscountCodeByID(s.ctx, code.ID)
	s.Require().NoError(err)
	s.Equal(0, released.UsedCount)

	// the buyer may try again after a rejection
	_, err = s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: file.ID, DiscountCode: "HALF", PaymentReference: "43"}, meta)
	s.NoError(err)
}

func (s *EngineTestSuite) TestExpirePendingPurchases() {
	user := s.register("reader@example.com")
	file := s.importFile("Book", 3, 1000)

	purchase, err := s.engine.CreatePurchase(s.ctx, user, PurchaseInput{FileID: file.ID, PaymentReference: "1"}, meta)
	s.Require().NoError(err)

	n, err := s.engine.ExpirePendingPurchases(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	s.engine.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	n, err = s.engine.ExpirePendingPurchases(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	got, err := s.engine.GetPurchase(s.ctx, purchase.ID)
	s.Require().NoError(err)
	s.Equal(database.PurchaseStatusExpired, got.Status)
}

func (s *EngineTestSuite) TestDiscountCodes() {
	_, err := s.engine.CreateDiscountCode(s.ctx, DiscountInput{Code: "BAD", Type: discount.TypePercentage, Value: 150})
	s.ErrorIs(err, discount.ErrInvalidValue)

	missing := uint(42)
	_, err = s.engine.CreateDiscountCode(s.ctx, DiscountInput{Code: "ONE", Type: discount.TypeFixed, Value: 10, FileID: &missing})
	s.ErrorIs(err, ErrFileNotFound)

	code := s.createCode(DiscountInput{Code: "spring sale", Type: discount.TypeFixed, Value: 5000})
	s.Equal("SPRINGSALE", code.Code)
	s.True(code.Active)

	_, err = s.engine.CreateDiscountCode(s.ctx, DiscountInput{Code: "SPRINGSALE", Type: discount.TypeFree})
	s.ErrorIs(err, ErrDiscountCodeTaken)

	s.Require().NoError(s.engine.DeactivateDiscountCode(s.ctx, code.ID))
	s.ErrorIs(s.engine.DeactivateDiscountCode(s.ctx, 999), ErrDiscountNotFound)

	file := s.importFile("Book", 2, 10000)
	_, err = s.engine.ValidateDiscount(s.ctx, 1, file.ID, "springsale")
	s.ErrorIs(err, discount.ErrInactive)

	codes, err := s.engine.ListDiscountCodes(s.ctx)
	s.Require().NoError(err)
	s.Len(codes, 1)
}

func (s *EngineTestSuite) TestOpenDocument() {
	user := s.register("reader@example.com")
	file := s.importFile("Book", 5, 1000)

	var preview bytes.Buffer
	policy, err := s.engine.OpenDocument(s.ctx, nil, file.ID, &preview, meta)
	s.Require().NoError(err)
	s.True(policy.IsPreview())
	pages, err := viewer.PageCount(bytes.NewReader(preview.Bytes()))
	s.Require().NoError(err)
	s.Equal(2, pages)

	admin := s.register("admin@example.com")
	var full bytes.Buffer
	policy, err = s.engine.OpenDocument(s.ctx, admin, file.ID, &full, meta)
	s.Require().NoError(err)
	s.False(policy.IsPreview())
	pages, err = viewer.PageCount(bytes.NewReader(full.Bytes()))
	s.Require().NoError(err)
	s.Equal(5, pages)

	var userPreview bytes.Buffer
	_, err = s.engine.OpenDocument(s.ctx, user, file.ID, &userPreview, meta)
	s.Require().NoError(err)

	logs, _, err := s.engine.SecurityLogs(s.ctx, user.ID, 1, 10)
	s.Require().NoError(err)
	s.Equal(database.SecurityEventFileViewed, logs[0].Event)
	s.Contains(logs[0].Details, "preview=true")
}

func (s *EngineTestSuite) TestBankCards() {
	_, err := s.engine.CreateBankCard(s.ctx, BankCardInput{CardNumber: "1234", HolderName: "X"})
	s.ErrorIs(err, ErrInvalidCardNumber)

	cards, err := s.engine.PublicBankCards(s.ctx)
	s.Require().NoError(err)
	s.Empty(cards)

	card, err := s.engine.CreateBankCard(s.ctx, BankCardInput{CardNumber: "۶۱۰۴ ۳۳۰۰ ۰۰۰۰ ۰۰۱۱", HolderName: "Nashr", BankName: "Mellat"})
	s.Require().NoError(err)
	s.Equal("6104330000000011", card.CardNumber)

	_, err = s.engine.CreateBankCard(s.ctx, BankCardInput{CardNumber: "6104330000000011", HolderName: "Again"})
	s.ErrorIs(err, ErrBankCardTaken)

	cards, err = s.engine.PublicBankCards(s.ctx)
	s.Require().NoError(err)
	s.Len(cards, 1)

	s.Require().NoError(s.engine.DeleteBankCard(s.ctx, card.ID))
	s.ErrorIs(s.engine.DeleteBankCard(s.ctx, card.ID), ErrBankCardNotFound)

	cards, err = s.engine.PublicBankCards(s.ctx)
	s.Require().NoError(err)
	s.Empty(cards)
}

func (s *EngineTestSuite) TestJobsAndCache() {
	jobs := s.engine.Jobs()
	s.Require().Len(jobs, 2)
	s.Equal(JobExpirePurchases, jobs[0].ID)
	s.Equal(JobPruneSecurityLogs, jobs[1].ID)

	s.ErrorIs(s.engine.RunJob("missing"), scheduler.ErrJobNotFound)
	s.Require().NoError(s.engine.RunJob(JobPruneSecurityLogs))
	s.Eventually(func() bool {
		job, ok := s.engine.scheduler.GetJob(JobPruneSecurityLogs)
		return ok && job.Status == scheduler.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	s.ErrorIs(s.engine.SetJobEnabled("missing", false), scheduler.ErrJobNotFound)
	s.Require().NoError(s.engine.SetJobEnabled(JobExpirePurchases, false))
	job, ok := s.engine.Job(JobExpirePurchases)
	s.Require().True(ok)
	s.False(job.Enabled)
	s.Require().NoError(s.engine.SetJobEnabled(JobExpirePurchases, true))
	job, _ = s.engine.Job(JobExpirePurchases)
	s.True(job.Enabled)

	s.Len(s.engine.CacheStats(), 2)
	s.NoError(s.engine.ClearCache(s.ctx))
}

func (s *EngineTestSuite) TestPruneSecurityLogs() {
	s.register("reader@example.com")

	n, err := s.engine.PruneSecurityLogs(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	s.engine.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }
	n, err = s.engine.PruneSecurityLogs(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func TestValidCardNumber(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"6037991234567893", true},
		{"6104330000000011", true},
		{"6037991234567890", false},
		{"603799123456789", false},
		{"60379912345678a3", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidCardNumber(tt.number))
		})
	}
}

func TestNormalizeCardNumber(t *testing.T) {
	require.Equal(t, "6037991234567893", NormalizeCardNumber("6037-9912 3456-7893"))
	require.Equal(t, "6037991234567893", NormalizeCardNumber("۶۰۳۷۹۹۱۲۳۴۵۶۷۸۹۳"))
}

func TestBankCardsFromOtherProcess(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Cache.BankCardsTTL = 50 * time.Millisecond
	ctx := context.Background()

	open := func() *Engine {
		db, err := database.New(cfg.Database.Path)
		require.NoError(t, err)
		e, err := New(cfg, db)
		require.NoError(t, err)
		e.Start()
		t.Cleanup(func() {
			assert.NoError(t, e.Close())
			assert.NoError(t, db.Close())
		})
		return e
	}
	server := open()
	cli := open()

	cards, err := server.PublicBankCards(ctx)
	require.NoError(t, err)
	require.Empty(t, cards)

	_, err = cli.CreateBankCard(ctx, BankCardInput{CardNumber: "4111111111111111", HolderName: "Nashr"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		cards, err := server.PublicBankCards(ctx)
		return err == nil && len(cards) == 1
	}, 5*time.Second, 20*time.Millisecond)
}
