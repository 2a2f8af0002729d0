package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

// minSessionKeyLength is the minimum length of the session key in bytes.
const minSessionKeyLength = 32

// Config holds the configuration for the nashr server and its dependencies.
type Config struct {
	// Listen is the address the server will listen on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// ServerURL is the public base URL of the web application, used in emails.
	ServerURL string `yaml:"server_url" mapstructure:"server_url"`
	// SessionKey is the key used to sign session cookies.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of a session in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
	// SecureCookies marks the session cookie as https only.
	SecureCookies bool `yaml:"secure_cookies" mapstructure:"secure_cookies"`
	// AllowedOrigins lists the origins allowed to call the API with credentials.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// AdminEmails lists email addresses that are granted admin rights on registration.
	AdminEmails []string `yaml:"admin_emails" mapstructure:"admin_emails"`
	// Database holds the database configuration.
	Database *DatabaseConfig `yaml:"database" mapstructure:"database"`
	// Storage holds the configuration for the PDF blob store.
	Storage *StorageConfig `yaml:"storage" mapstructure:"storage"`
	// Cache holds the cache engine configuration.
	Cache *CacheConfig `yaml:"cache" mapstructure:"cache"`
	// Viewer holds the configuration of the document viewer.
	Viewer *ViewerConfig `yaml:"viewer" mapstructure:"viewer"`
	// Security holds login lockout and security log settings.
	Security *SecurityConfig `yaml:"security" mapstructure:"security"`
	// Purchases holds purchase workflow settings.
	Purchases *PurchasesConfig `yaml:"purchases" mapstructure:"purchases"`
	// Jobs holds the cron schedules of the background jobs.
	Jobs *JobsConfig `yaml:"jobs" mapstructure:"jobs"`
	// Email holds the email notification configuration.
	Email *EmailConfig `yaml:"email" mapstructure:"email"`
}

// DatabaseConfig holds the database configuration.
type DatabaseConfig struct {
	// Path is the path to the database file.
	Path string `yaml:"path" mapstructure:"path"`
}

// StorageConfig holds the configuration for stored PDF files.
type StorageConfig struct {
	// Path is the directory uploaded PDF files are written to.
	Path string `yaml:"path" mapstructure:"path"`
	// MaxUploadSize is the maximum size of an uploaded PDF in bytes.
	MaxUploadSize int64 `yaml:"max_upload_size" mapstructure:"max_upload_size"`
}

// CacheConfig holds the configuration for the cache engine.
type CacheConfig struct {
	// Type is the type of cache engine to use (e.g., "memory", "redis").
	Type CacheType `yaml:"type" mapstructure:"type"`
	// RedisURL is the address of the Redis server if using Redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// StatsTTL is how long per-user dashboard stats are cached.
	StatsTTL time.Duration `yaml:"stats_ttl" mapstructure:"stats_ttl"`
	// BankCardsTTL is how long the public bank card list is cached.
	BankCardsTTL time.Duration `yaml:"bank_cards_ttl" mapstructure:"bank_cards_ttl"`
}

// ViewerConfig holds the configuration of the document viewer.
type ViewerConfig struct {
	// DefaultPreviewPages is the page limit for files that don't define their own.
	DefaultPreviewPages int `yaml:"default_preview_pages" mapstructure:"default_preview_pages"`
	// Watermark configures the text stamped on served documents.
	Watermark *WatermarkConfig `yaml:"watermark" mapstructure:"watermark"`
}

// WatermarkConfig configures the watermark stamped on served documents.
type WatermarkConfig struct {
	// Enabled indicates whether documents are watermarked.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Opacity of the watermark text (0-1).
	Opacity float64 `yaml:"opacity" mapstructure:"opacity"`
	// FontSize of the watermark text in points.
	FontSize int `yaml:"font_size" mapstructure:"font_size"`
	// Rotation of the watermark text in degrees.
	Rotation int `yaml:"rotation" mapstructure:"rotation"`
}

// SecurityConfig holds login lockout and security log settings.
type SecurityConfig struct {
	// MaxFailedLogins is the number of failed logins within LockoutWindow that locks an account.
	MaxFailedLogins int `yaml:"max_failed_logins" mapstructure:"max_failed_logins"`
	// LockoutWindow is the sliding window failed logins are counted in.
	LockoutWindow time.Duration `yaml:"lockout_window" mapstructure:"lockout_window"`
	// LogRetentionDays is the number of days security logs are kept.
	LogRetentionDays int `yaml:"log_retention_days" mapstructure:"log_retention_days"`
}

// PurchasesConfig holds purchase workflow settings.
type PurchasesConfig struct {
	// PendingExpiryHours is the number of hours after which an unreviewed purchase expires.
	PendingExpiryHours int `yaml:"pending_expiry_hours" mapstructure:"pending_expiry_hours"`
}

// JobsConfig holds the cron schedules of the background jobs.
type JobsConfig struct {
	// PruneSchedule is the cron schedule of the security log pruning job.
	PruneSchedule string `yaml:"prune_schedule" mapstructure:"prune_schedule"`
	// ExpireSchedule is the cron schedule of the pending purchase expiry job.
	ExpireSchedule string `yaml:"expire_schedule" mapstructure:"expire_schedule"`
}

// EmailConfig holds the email notification configuration.
type EmailConfig struct {
	// Enabled indicates whether email notifications are enabled.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// SMTPHost is the SMTP server host.
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host"`
	// SMTPPort is the SMTP server port.
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port"`
	// Username is the SMTP username.
	Username string `yaml:"username" mapstructure:"username"`
	// Password is the SMTP password.
	Password string `yaml:"password" mapstructure:"password"`
	// FromEmail is the email address from which notifications are sent.
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	// FromName is the name from which notifications are sent.
	FromName string `yaml:"from_name" mapstructure:"from_name"`
	// UseTLS indicates whether to use STARTTLS for the SMTP connection.
	UseTLS bool `yaml:"use_tls" mapstructure:"use_tls"`
	// UseSSL indicates whether to use SSL for the SMTP connection.
	UseSSL bool `yaml:"use_ssl" mapstructure:"use_ssl"`
	// InsecureSkipVerify indicates whether to skip TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
// A missing config file is not an error, defaults and environment variables are used instead.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("NASHR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.nashr")
		v.AddConfigPath("/etc/nashr")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
		log.Debug("Environment variables with the NASHR_ prefix override config file values")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "0.0.0.0:8080")
	v.SetDefault("server_url", "http://localhost:5173")
	v.SetDefault("session_key", "")
	v.SetDefault("session_max_age", 604800) // 7 days
	v.SetDefault("secure_cookies", false)
	v.SetDefault("allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("admin_emails", []string{})

	v.SetDefault("database.path", "./data/nashr.db")

	v.SetDefault("storage.path", "./data/files")
	v.SetDefault("storage.max_upload_size", 100<<20) // 100 MiB

	v.SetDefault("cache.type", CacheTypeMemory)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.stats_ttl", 5*time.Minute)
	v.SetDefault("cache.bank_cards_ttl", time.Minute)

	v.SetDefault("viewer.default_preview_pages", 5)
	v.SetDefault("viewer.watermark.enabled", true)
	v.SetDefault("viewer.watermark.opacity", 0.15)
	v.SetDefault("viewer.watermark.font_size", 28)
	v.SetDefault("viewer.watermark.rotation", 45)

	v.SetDefault("security.max_failed_logins", 5)
	v.SetDefault("security.lockout_window", 15*time.Minute)
	v.SetDefault("security.log_retention_days", 90)

	v.SetDefault("purchases.pending_expiry_hours", 72)

	v.SetDefault("jobs.prune_schedule", "30 3 * * *")  // every night at 03:30
	v.SetDefault("jobs.expire_schedule", "0 * * * *") // every hour

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.from_name", "Nashr")
	v.SetDefault("email.use_tls", true)
	v.SetDefault("email.use_ssl", false)
	v.SetDefault("email.insecure_skip_verify", false)
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing config")
	}

	if c.SessionKey == "" {
		return fmt.Errorf("session key is required")
	}
	if len(c.SessionKey) < minSessionKeyLength {
		return fmt.Errorf("session key must be at least %d bytes long", minSessionKeyLength)
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("session max age must be greater than 0")
	}

	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Storage == nil || c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	if c.Cache != nil {
		switch c.Cache.Type {
		case CacheTypeMemory:
		case CacheTypeRedis:
			if c.Cache.RedisURL == "" {
				return fmt.Errorf("Redis URL is required when Redis cache is enabled") //nolint:staticcheck
			}
		default:
			return fmt.Errorf("unknown cache type %q", c.Cache.Type)
		}
	} else {
		c.Cache = &CacheConfig{Type: CacheTypeMemory, StatsTTL: 5 * time.Minute, BankCardsTTL: time.Minute}
	}

	if c.Viewer == nil {
		return fmt.Errorf("missing viewer config")
	}
	if c.Viewer.DefaultPreviewPages < 1 {
		return fmt.Errorf("default preview pages must be at least 1")
	}
	if w := c.Viewer.Watermark; w != nil && w.Enabled {
		if w.Opacity <= 0 || w.Opacity > 1 {
			return fmt.Errorf("watermark opacity must be between 0 and 1")
		}
		if w.FontSize <= 0 {
			return fmt.Errorf("watermark font size must be greater than 0")
		}
	}

	if c.Security == nil {
		return fmt.Errorf("missing security config")
	}
	if c.Security.MaxFailedLogins < 1 {
		return fmt.Errorf("max failed logins must be at least 1")
	}
	if c.Security.LockoutWindow <= 0 {
		return fmt.Errorf("lockout window must be greater than 0")
	}

	if c.Jobs == nil {
		return fmt.Errorf("missing jobs config")
	}
	for name, schedule := range map[string]string{
		"prune":  c.Jobs.PruneSchedule,
		"expire": c.Jobs.ExpireSchedule,
	} {
		if len(strings.Fields(schedule)) != 5 {
			return fmt.Errorf("%s schedule must be a valid cron expression with 5 fields (minute hour day month weekday)", name)
		}
	}

	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" {
			return fmt.Errorf("SMTP host is required when email is enabled") //nolint:staticcheck
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("from email is required when email is enabled")
		}
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	c.Listen = strings.TrimSpace(c.Listen)
	c.ServerURL = urlSanitize(c.ServerURL)
	c.AllowedOrigins = lo.Map(c.AllowedOrigins, func(o string, _ int) string { return urlSanitize(o) })
	c.AdminEmails = lo.Map(c.AdminEmails, func(e string, _ int) string { return strings.ToLower(strings.TrimSpace(e)) })

	if c.Cache != nil {
		c.Cache.RedisURL = strings.TrimSpace(c.Cache.RedisURL)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}

// IsAdminEmail reports whether the email address is listed in admin_emails.
func (c *Config) IsAdminEmail(email string) bool {
	if c == nil {
		return false
	}
	return lo.Contains(c.AdminEmails, strings.ToLower(strings.TrimSpace(email)))
}

// IsAllowedOrigin reports whether the origin may call the API with credentials.
func (c *Config) IsAllowedOrigin(origin string) bool {
	if c == nil || origin == "" {
		return false
	}
	return lo.Contains(c.AllowedOrigins, urlSanitize(origin))
}

// PreviewPages returns the page limit for a file, falling back to the default
// when the file doesn't define its own.
func (v *ViewerConfig) PreviewPages(filePreviewPages int) int {
	if filePreviewPages > 0 {
		return filePreviewPages
	}
	if v == nil || v.DefaultPreviewPages < 1 {
		return 1
	}
	return v.DefaultPreviewPages
}

// GetPendingExpiry returns the pending purchase expiry with proper defaults.
func (p *PurchasesConfig) GetPendingExpiry() time.Duration {
	if p == nil || p.PendingExpiryHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(p.PendingExpiryHours) * time.Hour
}

// GetLogRetention returns the security log retention with proper defaults.
func (s *SecurityConfig) GetLogRetention() time.Duration {
	if s == nil || s.LogRetentionDays <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(s.LogRetentionDays) * 24 * time.Hour
}
