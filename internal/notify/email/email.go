package email

import (
	"bytes"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/nashr-app/nashr/internal/config"
	mail "github.com/xhit/go-simple-mail/v2"
)

// NotificationService sends purchase emails to buyers.
type NotificationService struct {
	config    *config.EmailConfig
	serverURL string
	templates *template.Template
	send      func(to, subject, body string) error
}

// PurchaseNotification contains the data for a purchase email.
type PurchaseNotification struct {
	UserEmail      string
	UserName       string
	FileTitle      string
	ReferenceCode  string
	OriginalPrice  int64
	DiscountAmount int64
	FinalPrice     int64
	Completed      bool
	Reason         string
	CreatedAt      time.Time
	ServerURL      string
}

//go:embed templates/*.html
var templatesFS embed.FS

var funcs = template.FuncMap{
	"toman": func(v int64) string { return humanize.Comma(v) + " تومان" },
	"date":  func(t time.Time) string { return t.Format("2006-01-02 15:04") },
}

// New creates a new email notification service.
func New(cfg *config.EmailConfig, serverURL string) (*NotificationService, error) {
	if cfg == nil {
		cfg = &config.EmailConfig{}
	}
	t, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	n := &NotificationService{
		config:    cfg,
		serverURL: serverURL,
		templates: t,
	}
	n.send = n.sendEmail
	return n, nil
}

// SendPurchaseCreated sends the receipt of a new purchase.
func (n *NotificationService) SendPurchaseCreated(notification PurchaseNotification) error {
	subject := fmt.Sprintf("[نشر] ثبت خرید %s", notification.ReferenceCode)
	return n.notify("purchase_created.html", subject, notification)
}

// SendPurchaseApproved tells the buyer the purchase was approved and the file is unlocked.
func (n *NotificationService) SendPurchaseApproved(notification PurchaseNotification) error {
	subject := fmt.Sprintf("[نشر] خرید %s تایید شد", notification.ReferenceCode)
	return n.notify("purchase_approved.html", subject, notification)
}

// SendPurchaseRejected tells the buyer the purchase was rejected.
func (n *NotificationService) SendPurchaseRejected(notification PurchaseNotification) error {
	subject := fmt.Sprintf("[نشر] خرید %s رد شد", notification.ReferenceCode)
	return n.notify("purchase_rejected.html", subject, notification)
}

func (n *NotificationService) notify(tmpl, subject string, notification PurchaseNotification) error {
	if !n.config.Enabled {
		log.Debug("Email notifications are disabled, skipping notification", "template", tmpl)
		return nil
	}

	if notification.UserEmail == "" {
		log.Warn("User email is empty, skipping notification", "user", notification.UserName)
		return nil
	}

	if notification.ServerURL == "" {
		notification.ServerURL = n.serverURL
	}

	body, err := n.render(tmpl, notification)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	return n.send(notification.UserEmail, subject, body)
}

func (n *NotificationService) render(tmpl string, notification PurchaseNotification) (string, error) {
	var buf bytes.Buffer
	if err := n.templates.ExecuteTemplate(&buf, tmpl, notification); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sendEmail sends an email using go-simple-mail library.
func (n *NotificationService) sendEmail(to, subject, body string) error {
	server := mail.NewSMTPClient()
	server.Host = n.config.SMTPHost
	server.Port = n.config.SMTPPort
	server.Username = n.config.Username
	server.Password = n.config.Password

	switch {
	case n.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case n.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}

	if n.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("Failed to close SMTP client", "error", closeErr)
		}
	}()

	fromName := n.config.FromName
	if fromName == "" {
		fromName = "Nashr"
	}

	email := mail.NewMSG()
	email.SetFrom(fmt.Sprintf("%s <%s>", fromName, n.config.FromEmail))
	email.AddTo(to)
	email.SetSubject(subject)
	email.SetBody(mail.TextHTML, body)

	if email.Error != nil {
		return fmt.Errorf("failed to build email: %w", email.Error)
	}

	if err := email.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("Email notification sent successfully", "to", to, "subject", subject)
	return nil
}
