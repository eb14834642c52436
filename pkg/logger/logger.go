package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Options struct {
	Level  string // trace|debug|info|warning|error|fatal
	Format string // text|json
	File   string // log file prefix; empty means stdout only
}

var base = newLogger(Options{Level: "info", Format: "json"})

func newLogger(opts Options) *logrus.Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if opts.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}
	l.SetOutput(os.Stdout)
	return l
}

// Init replaces the process logger. A log file, when configured, is written
// alongside stdout.
func Init(opts Options) error {
	l := newLogger(opts)
	if opts.File != "" {
		name := fmt.Sprintf("%s_%s.log", opts.File, time.Now().Format("2006-01-02_15-04-05"))
		file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", name, err)
		}
		l.SetOutput(io.MultiWriter(file, os.Stdout))
	}
	base = l
	return nil
}

// SetOutput redirects the process logger, mainly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

func Base() *logrus.Logger {
	return base
}

func entry(action string, userID *string, details map[string]interface{}) *logrus.Entry {
	fields := logrus.Fields{"action": action}
	if userID != nil {
		fields["user_id"] = *userID
	}
	if len(details) > 0 {
		fields["details"] = details
	}
	return base.WithFields(fields)
}

func Info(action string, details map[string]interface{}) {
	entry(action, nil, details).Info(action)
}

func InfoWithUser(userID string, action string, details map[string]interface{}) {
	entry(action, &userID, details).Info(action)
}

func Warn(action string, details map[string]interface{}) {
	entry(action, nil, details).Warn(action)
}

func WarnWithUser(userID string, action string, details map[string]interface{}) {
	entry(action, &userID, details).Warn(action)
}

func Error(action string, err error, details map[string]interface{}) {
	entry(action, nil, details).WithError(err).Error(action)
}

func ErrorWithUser(userID string, action string, err error, details map[string]interface{}) {
	entry(action, &userID, details).WithError(err).Error(action)
}

func GetUserIDFromContext(c *fiber.Ctx) *string {
	if userID := c.Locals("userID"); userID != nil {
		if id, ok := userID.(string); ok {
			return &id
		}
	}
	return nil
}

var sensitiveFields = []string{"password", "newPassword", "secret", "token", "code", "mfaToken"}

func redactSensitiveFields(jsonMap map[string]interface{}) {
	for _, field := range sensitiveFields {
		if _, exists := jsonMap[field]; exists {
			jsonMap[field] = "[REDACTED]"
		}
	}
}

func GetRequestBodySummary(c *fiber.Ctx) string {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return fmt.Sprintf("multipart (%d bytes)", len(c.Body()))
	}

	body := c.Body()
	if len(body) == 0 {
		return "empty"
	}

	if len(body) > 1024 {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	var jsonMap map[string]interface{}
	if err := json.Unmarshal(body, &jsonMap); err == nil {
		redactSensitiveFields(jsonMap)
		if jsonBytes, err := json.Marshal(jsonMap); err == nil {
			if len(jsonBytes) > 200 {
				return string(jsonBytes[:200]) + "..."
			}
			return string(jsonBytes)
		}
	}

	return fmt.Sprintf("binary (%d bytes)", len(body))
}

func GetResponseSizeSummary(c *fiber.Ctx) string {
	response := c.Response()
	if response == nil {
		return "unknown"
	}

	body := response.Body()
	if len(body) == 0 {
		return "empty"
	}

	if len(body) > 1024 {
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	return fmt.Sprintf("small (%d bytes)", len(body))
}

func GenerateRequestID() string {
	return uuid.New().String()
}
