package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/nashr-app/nashr/internal/config"
	"github.com/nashr-app/nashr/internal/database"
	"github.com/nashr-app/nashr/internal/engine"
	"github.com/nashr-app/nashr/internal/version"
	"github.com/spf13/cobra"
)

var rootCmdPersistentFlags struct {
	LogFile    string
	ConfigFile string
	LogLevel   string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to")
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, ~/.nashr, /etc/nashr)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:   "nashr",
	Short: "Nashr sells licensed PDF files and serves them to readers",
	Long:  `Nashr is a small bookstore for PDF files. Visitors read a preview, buyers pay by card-to-card transfer and read the full watermarked document once an admin verifies the payment.`,
	Example: `nashr serve --config config.yml
  nashr files add book.pdf --title "My Book" --price 45000
  nashr user promote admin@example.com`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		setLogLevel(rootCmdPersistentFlags.LogLevel)
		logToFile()
	},
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootCmdPersistentFlags.LogFile == "" {
		return
	}
	file, err := os.OpenFile(rootCmdPersistentFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}

	log.SetOutput(io.MultiWriter(os.Stderr, file))
	log.Info("logging to both console and file", "file", rootCmdPersistentFlags.LogFile)
}

// openDatabase loads the config and opens the database it points to.
func openDatabase() (*config.Config, *database.Client, error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

// withEngine runs fn with an engine for one-off admin commands. The
// scheduler is never started.
func withEngine(fn func(e *engine.Engine) error) error {
	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	e, err := engine.New(cfg, db)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	return fn(e)
}

func Execute() error {
	return fang.Execute(context.Background(), rootCmd, fang.WithVersion(version.Version))
}
