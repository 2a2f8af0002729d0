package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nashr-app/nashr/internal/api/models"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/samber/lo"
)

// ValidateDiscountRequest is the body of POST /api/discount-codes/validate.
type ValidateDiscountRequest struct {
	Code   string `json:"code" binding:"required,max=64"`
	FileID uint   `json:"fileId" binding:"required"`
}

// ListFiles returns the published catalogue. Signed-in users see which files they own.
func (h *Handler) ListFiles(c *gin.Context) {
	files, err := h.engine.ListFiles(c.Request.Context(), false)
	if err != nil {
		respondError(c, err)
		return
	}

	var owned map[uint]bool
	user := currentUser(c)
	if user != nil {
		purchases, err := h.engine.ListPurchasedFiles(c.Request.Context(), user.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		owned = lo.SliceToMap(purchases, func(p database.Purchase) (uint, bool) { return p.FileID, true })
	}

	items := lo.Map(files, func(f database.File, _ int) models.File {
		item := models.ToFile(&f, h.config.Viewer.PreviewPages(f.PreviewPages))
		if user != nil {
			item.Licensed = lo.ToPtr(user.IsAdmin || owned[f.ID])
		}
		return item
	})

	c.JSON(http.StatusOK, gin.H{"success": true, "files": items})
}

// GetFile returns a single file.
func (h *Handler) GetFile(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	user := currentUser(c)
	file, policy, err := h.engine.ViewerPolicy(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, err)
		return
	}

	item := models.ToFile(file, policy.PreviewPages)
	if user != nil {
		item.Licensed = lo.ToPtr(policy.Licensed)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": item})
}

// ViewFile returns the page limit of a file for the viewer. With ?page=N it
// also reports whether that page may be displayed.
func (h *Handler) ViewFile(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var page *int
	if p := c.Query("page"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			respondInvalidInput(c, err)
			return
		}
		page = &v
	}

	user := currentUser(c)
	file, policy, err := h.engine.ViewerPolicy(c.Request.Context(), user, id)
	if err != nil {
		respondError(c, err)
		return
	}

	view := models.ToViewer(file, policy, user != nil && h.watermarkEnabled())
	if page != nil {
		view.Page = page
		view.PageAllowed = lo.ToPtr(policy.CanView(*page))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "viewer": view})
}

// Document serves the PDF: the preview pages for readers without a license,
// the whole watermarked document otherwise.
func (h *Handler) Document(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	policy, err := h.engine.OpenDocument(c.Request.Context(), currentUser(c), id, &buf, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "private, no-store")
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="nashr-%d.pdf"`, id))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Page-Limit", strconv.Itoa(policy.MaxViewablePages()))
	c.Header("X-Total-Pages", strconv.Itoa(policy.TotalPages))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// PublicBankCards returns the cards buyers transfer money to.
func (h *Handler) PublicBankCards(c *gin.Context) {
	cards, err := h.engine.PublicBankCards(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "cards": models.ToBankCards(cards)})
}

// ValidateDiscount checks a discount code for a file and returns the resulting prices.
func (h *Handler) ValidateDiscount(c *gin.Context) {
	var req ValidateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	quote, err := h.engine.ValidateDiscount(c.Request.Context(), currentUser(c).ID, req.FileID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "discount": models.ToDiscountQuote(quote)})
}

func (h *Handler) watermarkEnabled() bool {
	return h.config.Viewer != nil && h.config.Viewer.Watermark != nil && h.config.Viewer.Watermark.Enabled
}
