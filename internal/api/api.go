package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/nashr-app/nashr/internal/api/auth"
	"github.com/nashr-app/nashr/internal/api/handler"
	"github.com/nashr-app/nashr/internal/config"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/engine"
)

const sessionName = "nashr_session"

type Server struct {
	cfg          *config.Config
	ginEngine    *gin.Engine
	engine       *engine.Engine
	authProvider *auth.Provider
}

// New creates the HTTP server and registers all routes.
func New(cfg *config.Config, e *engine.Engine, db database.UserDB) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := handler.RegisterValidators(v); err != nil {
			return nil, fmt.Errorf("failed to register validators: %w", err)
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{
		cfg:          cfg,
		ginEngine:    r,
		engine:       e,
		authProvider: auth.New(db),
	}
	s.setupSession()
	s.setupRoutes()
	s.setupAdminRoutes()
	return s, nil
}

// Handler returns the http.Handler of the server.
func (s *Server) Handler() http.Handler {
	return s.ginEngine
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(cors(s.cfg))
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`^/api/files/\d+/document$`})))
	s.ginEngine.Use(sessions.Sessions(sessionName, store))
}

func (s *Server) setupRoutes() {
	h := handler.New(s.engine, s.cfg)

	s.ginEngine.GET("/health", handler.Health)

	api := s.ginEngine.Group("/api")
	optional := api.Group("", s.authProvider.OptionalAuth())
	protected := api.Group("", s.authProvider.RequireAuth())

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	protected.GET("/auth/me", h.Me)
	protected.POST("/auth/logout", h.Logout)

	protected.GET("/user/stats", h.Stats)
	protected.GET("/user/purchased-files", h.PurchasedFiles)
	protected.GET("/user/profile", h.Profile)
	protected.PUT("/user/profile", h.UpdateProfile)
	protected.PUT("/user/password", h.ChangePassword)
	protected.GET("/user/security-logs", h.SecurityLogs)

	protected.GET("/purchases", h.ListPurchases)
	protected.POST("/purchases", h.CreatePurchase)
	protected.POST("/discount-codes/validate", h.ValidateDiscount)

	api.GET("/bank-cards/public", h.PublicBankCards)

	optional.GET("/files", h.ListFiles)
	optional.GET("/files/:id", h.GetFile)
	optional.GET("/files/:id/view", h.ViewFile)
	optional.GET("/files/:id/document", h.Document)
}

func (s *Server) setupAdminRoutes() {
	h := handler.NewAdmin(s.engine, s.cfg)

	admin := s.ginEngine.Group("/api/admin")
	admin.Use(s.authProvider.RequireAuth(), s.authProvider.RequireAdmin())

	admin.GET("/files", h.ListFiles)
	admin.POST("/files", h.UploadFile)
	admin.PUT("/files/:id/published", h.SetFilePublished)

	admin.GET("/purchases", h.ListPurchases)
	admin.POST("/purchases/:id/approve", h.ApprovePurchase)
	admin.POST("/purchases/:id/reject", h.RejectPurchase)

	admin.GET("/discount-codes", h.ListDiscountCodes)
	admin.POST("/discount-codes", h.CreateDiscountCode)
	admin.POST("/discount-codes/:id/deactivate", h.DeactivateDiscountCode)

	admin.GET("/bank-cards", h.ListBankCards)
	admin.POST("/bank-cards", h.CreateBankCard)
	admin.DELETE("/bank-cards/:id", h.DeleteBankCard)

	admin.GET("/jobs", h.ListJobs)
	admin.POST("/jobs/:id/run", h.RunJob)
	admin.PUT("/jobs/:id/enabled", h.SetJobEnabled)

	admin.GET("/cache", h.CacheStats)
	admin.DELETE("/cache", h.ClearCache)
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
