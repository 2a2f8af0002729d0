package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/nashr-app/nashr/internal/api/models"
	"github.com/nashr-app/nashr/internal/config"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/discount"
	"github.com/nashr-app/nashr/internal/engine"
	"github.com/samber/lo"
)

// AdminHandler serves the admin routes.
type AdminHandler struct {
	engine *engine.Engine
	config *config.Config
}

// NewAdmin creates a new AdminHandler.
func NewAdmin(eng *engine.Engine, cfg *config.Config) *AdminHandler {
	return &AdminHandler{
		engine: eng,
		config: cfg,
	}
}

// UploadFileRequest is the multipart form of POST /api/admin/files.
type UploadFileRequest struct {
	Title        string `form:"title" binding:"max=200"`
	Description  string `form:"description" binding:"max=5000"`
	Author       string `form:"author" binding:"max=200"`
	Price        int64  `form:"price" binding:"min=0"`
	PreviewPages int    `form:"previewPages" binding:"min=0"`
	Published    bool   `form:"published"`
}

// PublishRequest is the body of PUT /api/admin/files/:id/published.
type PublishRequest struct {
	Published bool `json:"published"`
}

// RejectRequest is the body of POST /api/admin/purchases/:id/reject.
type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// DiscountCodeRequest is the body of POST /api/admin/discount-codes.
type DiscountCodeRequest struct {
	Code         string     `json:"code" binding:"required,max=64"`
	Description  string     `json:"description" binding:"max=500"`
	Type         string     `json:"type" binding:"required,oneof=percentage fixed free"`
	Value        int64      `json:"value" binding:"min=0"`
	MaxDiscount  int64      `json:"maxDiscount" binding:"min=0"`
	MinPurchase  int64      `json:"minPurchase" binding:"min=0"`
	UsageLimit   int        `json:"usageLimit" binding:"min=0"`
	PerUserLimit int        `json:"perUserLimit" binding:"min=0"`
	FileID       *uint      `json:"fileId"`
	ValidFrom    *time.Time `json:"validFrom"`
	ValidUntil   *time.Time `json:"validUntil"`
}

// JobEnabledRequest is the body of PUT /api/admin/jobs/:id/enabled.
type JobEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// BankCardRequest is the body of POST /api/admin/bank-cards.
type BankCardRequest struct {
	CardNumber string `json:"cardNumber" binding:"required,max=32"`
	HolderName string `json:"holderName" binding:"required,max=100"`
	BankName   string `json:"bankName" binding:"max=100"`
	IBAN       string `json:"iban" binding:"max=34"`
	SortOrder  int    `json:"sortOrder"`
}

// ListFiles returns every file including unpublished ones.
func (h *AdminHandler) ListFiles(c *gin.Context) {
	files, err := h.engine.ListFiles(c.Request.Context(), true)
	if err != nil {
		respondError(c, err)
		return
	}
	items := lo.Map(files, func(f database.File, _ int) models.AdminFile {
		return models.ToAdminFile(&f, h.config.Viewer.PreviewPages(f.PreviewPages))
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "files": items})
}

// UploadFile imports a PDF from a multipart upload with the field "file".
func (h *AdminHandler) UploadFile(c *gin.Context) {
	if h.config.Storage != nil && h.config.Storage.MaxUploadSize > 0 {
		// leave room for the other form fields
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.Storage.MaxUploadSize+1<<20)
	}

	var req UploadFileRequest
	if err := c.ShouldBind(&req); err != nil {
		respondUploadError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		respondUploadError(c, err)
		return
	}
	if h.config.Storage != nil && h.config.Storage.MaxUploadSize > 0 && header.Size > h.config.Storage.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": msgFileTooLarge})
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close() //nolint:errcheck

	file, err := h.engine.ImportFile(c.Request.Context(), f, engine.FileInput{
		Title:        req.Title,
		Description:  req.Description,
		Author:       req.Author,
		Price:        req.Price,
		PreviewPages: req.PreviewPages,
		Published:    req.Published,
		FileName:     header.Filename,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"file":    models.ToAdminFile(file, h.config.Viewer.PreviewPages(file.PreviewPages)),
	})
}

func respondUploadError(c *gin.Context, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": msgFileTooLarge})
		return
	}
	respondInvalidInput(c, err)
}

// SetFilePublished shows or hides a file in the catalogue.
func (h *AdminHandler) SetFilePublished(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}
	if err := h.engine.SetFilePublished(c.Request.Context(), id, req.Published); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "published": req.Published})
}

// ListPurchases returns a page of purchases, filtered by ?status=.
func (h *AdminHandler) ListPurchases(c *gin.Context) {
	status := database.PurchaseStatus(c.Query("status"))
	switch status {
	case "", database.PurchaseStatusPending, database.PurchaseStatusCompleted,
		database.PurchaseStatusRejected, database.PurchaseStatusExpired:
	default:
		respondInvalidInput(c, errors.New("unknown purchase status"))
		return
	}

	page, pageSize, ok := pagination(c)
	if !ok {
		return
	}

	purchases, total, err := h.engine.ListPurchases(c.Request.Context(), status, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"purchases": models.ToAdminPurchases(purchases),
		"total":     total,
		"page":      page,
		"pageSize":  pageSize,
	})
}

// ApprovePurchase completes a pending purchase.
func (h *AdminHandler) ApprovePurchase(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	purchase, err := h.engine.ApprovePurchase(c.Request.Context(), currentUser(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "خرید تایید شد",
		"purchase": models.ToAdminPurchases([]database.Purchase{*purchase})[0],
	})
}

// RejectPurchase rejects a pending purchase.
func (h *AdminHandler) RejectPurchase(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	purchase, err := h.engine.RejectPurchase(c.Request.Context(), currentUser(c), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "خرید رد شد",
		"purchase": models.ToAdminPurchases([]database.Purchase{*purchase})[0],
	})
}

// ListDiscountCodes returns every discount code.
func (h *AdminHandler) ListDiscountCodes(c *gin.Context) {
	codes, err := h.engine.ListDiscountCodes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "codes": models.ToDiscountCodes(codes)})
}

// CreateDiscountCode adds a discount code.
func (h *AdminHandler) CreateDiscountCode(c *gin.Context) {
	var req DiscountCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	code, err := h.engine.CreateDiscountCode(c.Request.Context(), engine.DiscountInput{
		Code:         req.Code,
		Description:  req.Description,
		Type:         discount.Type(req.Type),
		Value:        req.Value,
		MaxDiscount:  req.MaxDiscount,
		MinPurchase:  req.MinPurchase,
		UsageLimit:   req.UsageLimit,
		PerUserLimit: req.PerUserLimit,
		FileID:       req.FileID,
		ValidFrom:    req.ValidFrom,
		ValidUntil:   req.ValidUntil,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "code": models.ToDiscountCode(code)})
}

// DeactivateDiscountCode stops a code from being redeemed.
func (h *AdminHandler) DeactivateDiscountCode(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.engine.DeactivateDiscountCode(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "کد تخفیف غیرفعال شد"})
}

// ListBankCards returns every bank card.
func (h *AdminHandler) ListBankCards(c *gin.Context) {
	cards, err := h.engine.ListBankCards(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cards": models.ToAdminBankCards(cards)})
}

// CreateBankCard adds a destination card.
func (h *AdminHandler) CreateBankCard(c *gin.Context) {
	var req BankCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	card, err := h.engine.CreateBankCard(c.Request.Context(), engine.BankCardInput{
		CardNumber: req.CardNumber,
		HolderName: req.HolderName,
		BankName:   req.BankName,
		IBAN:       req.IBAN,
		SortOrder:  req.SortOrder,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "card": models.ToAdminBankCards([]database.BankCard{*card})[0]})
}

// DeleteBankCard removes a destination card.
func (h *AdminHandler) DeleteBankCard(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.engine.DeleteBankCard(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "کارت بانکی حذف شد"})
}

// ListJobs returns the scheduled jobs.
func (h *AdminHandler) ListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "jobs": h.engine.Jobs()})
}

// RunJob triggers a job immediately.
func (h *AdminHandler) RunJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.RunJob(id); err != nil {
		respondError(c, err)
		return
	}
	log.Info("job triggered by admin", "job", id, "admin", currentUser(c).ID)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "وظیفه اجرا شد"})
}

// SetJobEnabled pauses or resumes a job.
func (h *AdminHandler) SetJobEnabled(c *gin.Context) {
	var req JobEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}
	id := c.Param("id")
	if err := h.engine.SetJobEnabled(id, req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	job, _ := h.engine.Job(id)
	c.JSON(http.StatusOK, gin.H{"success": true, "job": job})
}

// CacheStats returns the statistics of every cache.
func (h *AdminHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "caches": h.engine.CacheStats()})
}

// ClearCache empties every cache.
func (h *AdminHandler) ClearCache(c *gin.Context) {
	if err := h.engine.ClearCache(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "حافظه موقت پاک شد"})
}
