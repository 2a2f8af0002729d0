package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nashr-app/nashr/internal/api/models"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/engine"
)

// PurchaseRequest is the body of POST /api/purchases.
type PurchaseRequest struct {
	FileID           uint   `json:"fileId" binding:"required"`
	DiscountCode     string `json:"discountCode" binding:"max=64"`
	PaymentReference string `json:"paymentReference" binding:"max=64"`
	BankCardID       *uint  `json:"bankCardId"`
}

// ListPurchases returns the purchase history of the user.
func (h *Handler) ListPurchases(c *gin.Context) {
	purchases, err := h.engine.ListUserPurchases(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "purchases": models.ToPurchases(purchases)})
}

// CreatePurchase records a purchase. Free purchases are completed right away,
// paid ones wait for an admin to verify the transfer.
func (h *Handler) CreatePurchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidInput(c, err)
		return
	}

	purchase, err := h.engine.CreatePurchase(c.Request.Context(), currentUser(c), engine.PurchaseInput{
		FileID:           req.FileID,
		DiscountCode:     req.DiscountCode,
		PaymentReference: req.PaymentReference,
		BankCardID:       req.BankCardID,
	}, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}

	message := "خرید شما ثبت شد و پس از تایید پرداخت فعال می‌شود"
	if purchase.Status == database.PurchaseStatusCompleted {
		message = "خرید با موفقیت انجام شد"
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"message":  message,
		"purchase": models.ToPurchase(purchase),
	})
}
