package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

type Config struct {
	// Combination Service
	CombinationsAPIURL string        `validate:"required,url"`
	HTTPTimeout        time.Duration `validate:"gte=1s,lte=10m"`

	// Scenario store
	StoreBackend string `validate:"oneof=memory file sqlite"`
	StoreDir     string
	SQLiteDBPath string

	// AMQP scenario events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Presentation
	Locale    string `validate:"required"`
	ExportDir string `validate:"required"`

	// Logging
	LogLevel  string `validate:"oneof=debug info warn warning error"`
	LogFormat string `validate:"oneof=text json"`
}

// LoadDotEnv loads variables from the given .env files when present.
// Variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func Load() *Config {
	cfg := &Config{
		CombinationsAPIURL: strings.TrimRight(getEnv("COMBINATIONS_API_URL", "http://localhost:8080"), "/"),
		HTTPTimeout:        getEnvDuration("HTTP_TIMEOUT", 60*time.Second),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "file")),
		StoreDir:     getEnv("STORE_DIR", "./data"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/invoicemix.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "invoicemix"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "scenario_events"),

		Locale:    getEnv("LOCALE", "en"),
		ExportDir: getEnv("EXPORT_DIR", "."),

		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	return cfg
}

// AMQPEnabled reports whether scenario events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Language returns the parsed display locale, falling back to English.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if err := validator.New().Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				errors = append(errors, describe(fe))
			}
		} else {
			errors = append(errors, err.Error())
		}
	}

	if c.CombinationsAPIURL != "" {
		if parsedURL, err := url.Parse(c.CombinationsAPIURL); err == nil &&
			parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid combinations API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	if _, err := language.Parse(c.Locale); c.Locale != "" && err != nil {
		errors = append(errors, fmt.Sprintf("invalid locale '%s': %v", c.Locale, err))
	}

	switch c.StoreBackend {
	case "file":
		if c.StoreDir == "" {
			errors = append(errors, "store directory cannot be empty when using file backend")
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "url":
		return fmt.Sprintf("invalid %s '%v': must be a URL", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Sprintf("invalid %s '%v': must be one of [%s]", fe.Field(), fe.Value(), fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("invalid %s %v: must be %s %s", fe.Field(), fe.Value(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("invalid %s: failed '%s'", fe.Field(), fe.Tag())
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
