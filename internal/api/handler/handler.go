package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/nashr-app/nashr/internal/api/auth"
	"github.com/nashr-app/nashr/internal/config"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/discount"
	"github.com/nashr-app/nashr/internal/engine"
	"github.com/nashr-app/nashr/internal/scheduler"
	"github.com/nashr-app/nashr/internal/version"
)

// Messages shown to the user by the SPA.
const (
	msgInvalidInput  = "اطلاعات وارد شده معتبر نیست"
	msgInternalError = "خطایی رخ داد، لطفا دوباره تلاش کنید"
	msgInvalidID     = "شناسه نامعتبر است"
	msgFileTooLarge  = "حجم فایل بیش از حد مجاز است"
	msgLoggedOut     = "با موفقیت خارج شدید"
)

// errorMessages maps domain errors to a status code and the message shown to the user.
var errorMessages = []struct {
	err     error
	status  int
	message string
}{
	{engine.ErrEmailTaken, http.StatusConflict, "این ایمیل قبلا ثبت شده است"},
	{engine.ErrPhoneTaken, http.StatusConflict, "این شماره موبایل قبلا ثبت شده است"},
	{engine.ErrInvalidCredentials, http.StatusUnauthorized, "ایمیل یا رمز عبور اشتباه است"},
	{engine.ErrLocked, http.StatusTooManyRequests, "به دلیل تلاش‌های ناموفق متعدد، ورود به حساب موقتا مسدود شده است"},
	{engine.ErrWrongPassword, http.StatusBadRequest, "رمز عبور فعلی اشتباه است"},
	{engine.ErrUserNotFound, http.StatusNotFound, "کاربر یافت نشد"},
	{engine.ErrFileNotFound, http.StatusNotFound, "فایل یافت نشد"},
	{engine.ErrAlreadyPurchased, http.StatusConflict, "شما قبلا این فایل را خریداری کرده‌اید"},
	{engine.ErrPurchasePending, http.StatusConflict, "خرید شما برای این فایل در انتظار تایید است"},
	{engine.ErrPaymentReferenceRequired, http.StatusBadRequest, "کد پیگیری پرداخت الزامی است"},
	{engine.ErrPurchaseNotFound, http.StatusNotFound, "خرید یافت نشد"},
	{engine.ErrPurchaseNotPending, http.StatusConflict, "این خرید قبلا بررسی شده است"},
	{engine.ErrDiscountNotFound, http.StatusNotFound, "کد تخفیف معتبر نیست"},
	{engine.ErrDiscountCodeTaken, http.StatusConflict, "این کد تخفیف قبلا ثبت شده است"},
	{engine.ErrBankCardNotFound, http.StatusNotFound, "کارت بانکی یافت نشد"},
	{engine.ErrBankCardTaken, http.StatusConflict, "این کارت بانکی قبلا ثبت شده است"},
	{engine.ErrInvalidCardNumber, http.StatusBadRequest, "شماره کارت معتبر نیست"},
	{engine.ErrInvalidDocument, http.StatusBadRequest, "فایل ارسال شده یک PDF معتبر نیست"},
	{discount.ErrInactive, http.StatusBadRequest, "کد تخفیف غیرفعال است"},
	{discount.ErrNotStarted, http.StatusBadRequest, "زمان استفاده از این کد تخفیف هنوز فرا نرسیده است"},
	{discount.ErrExpired, http.StatusBadRequest, "کد تخفیف منقضی شده است"},
	{discount.ErrUsageLimit, http.StatusBadRequest, "ظرفیت استفاده از این کد تخفیف تکمیل شده است"},
	{discount.ErrUserLimit, http.StatusBadRequest, "شما قبلا از این کد تخفیف استفاده کرده‌اید"},
	{discount.ErrNotApplicable, http.StatusBadRequest, "این کد تخفیف برای این فایل قابل استفاده نیست"},
	{discount.ErrMinPurchase, http.StatusBadRequest, "مبلغ خرید کمتر از حداقل مبلغ لازم برای این کد تخفیف است"},
	{discount.ErrInvalidValue, http.StatusBadRequest, "مقدار تخفیف معتبر نیست"},
	{scheduler.ErrJobNotFound, http.StatusNotFound, "وظیفه یافت نشد"},
}

// Handler serves the routes of signed-in users and visitors.
type Handler struct {
	engine *engine.Engine
	config *config.Config
}

// New creates a new Handler.
func New(eng *engine.Engine, cfg *config.Config) *Handler {
	return &Handler{
		engine: eng,
		config: cfg,
	}
}

// Health reports that the server is up.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok", "version": version.Version})
}

// respondError writes the error envelope for err. Errors without a user-facing
// message are logged and reported as internal errors.
func respondError(c *gin.Context, err error) {
	for _, e := range errorMessages {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"success": false, "error": e.message})
			return
		}
	}
	log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": msgInternalError})
}

func respondInvalidInput(c *gin.Context, err error) {
	log.Debug("invalid request", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgInvalidInput})
}

func requestMeta(c *gin.Context) engine.RequestMeta {
	return engine.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// currentUser returns the user loaded by the auth middleware, or nil for visitors.
func currentUser(c *gin.Context) *database.User {
	user, _ := auth.UserFromContext(c)
	return user
}

func parseUintParam(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.ToUint(v)
}

// idParam parses the :id route parameter. It writes the error response and returns false when invalid.
func idParam(c *gin.Context) (uint, bool) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msgInvalidID})
		return 0, false
	}
	return id, true
}

// pagination reads the page and pageSize query parameters. The database clamps the page size.
func pagination(c *gin.Context) (int, int, bool) {
	page, pageSize := 1, 20

	if p := c.Query("page"); p != "" {
		v, err := parseUintParam(p)
		if err != nil || v == 0 {
			respondInvalidInput(c, err)
			return 0, 0, false
		}
		if page, err = safecast.ToInt(v); err != nil {
			respondInvalidInput(c, err)
			return 0, 0, false
		}
	}

	if ps := c.Query("pageSize"); ps != "" {
		v, err := parseUintParam(ps)
		if err != nil || v == 0 || v > 100 {
			respondInvalidInput(c, err)
			return 0, 0, false
		}
		if pageSize, err = safecast.ToInt(v); err != nil {
			respondInvalidInput(c, err)
			return 0, 0, false
		}
	}

	return page, pageSize, true
}
