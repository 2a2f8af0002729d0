package scheduler

import (
	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

var _ gocron.Logger = (*gocronLogger)(nil)

// gocronLogger forwards gocron's internal logs to the application logger.
type gocronLogger struct {
	log *log.Logger
}

func newLogger() *gocronLogger {
	return &gocronLogger{log: log.Default().WithPrefix("scheduler")}
}

func (l *gocronLogger) Debug(msg string, args ...any) { l.log.Debug(msg, args...) }
func (l *gocronLogger) Error(msg string, args ...any) { l.log.Error(msg, args...) }
func (l *gocronLogger) Info(msg string, args ...any)  { l.log.Info(msg, args...) }
func (l *gocronLogger) Warn(msg string, args ...any)  { l.log.Warn(msg, args...) }
