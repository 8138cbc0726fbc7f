package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"campusledger/internal/core"
	"campusledger/internal/insights"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP audit bus. Empty URL disables publishing entirely.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sessions
	SessionTTL time.Duration

	// Rate limiting
	RequestsPerMinute int

	// Classification thresholds
	RiskCents             int64
	FoodLoverPercent      float64
	BalancedPercent       float64
	TrackerBadgeCount     int
	NecessaryCategories   []string
	UnnecessaryCategories []string

	// Admin report export (optional)
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8081"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/campusledger.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "campusledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "audit_events"),

		SessionTTL: getEnvDuration("SESSION_TTL", 12*time.Hour),

		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 60),

		RiskCents:             getEnvInt64("RISK_THRESHOLD_CENTS", 500000),
		FoodLoverPercent:      getEnvFloat("FOOD_LOVER_PERCENT", 50),
		BalancedPercent:       getEnvFloat("BALANCED_PERCENT", 20),
		TrackerBadgeCount:     getEnvInt("TRACKER_BADGE_COUNT", 10),
		NecessaryCategories:   getEnvList("NECESSARY_CATEGORIES", []string{"Rent", "Books"}),
		UnnecessaryCategories: getEnvList("UNNECESSARY_CATEGORIES", []string{"Entertainment"}),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Overview"),
	}
}

// Thresholds builds the insights configuration from the loaded values.
func (c *Config) Thresholds() insights.Thresholds {
	t := insights.DefaultThresholds()
	t.RiskCents = c.RiskCents
	t.FoodLoverPercent = c.FoodLoverPercent
	t.BalancedPercent = c.BalancedPercent
	t.TrackerBadgeCount = c.TrackerBadgeCount
	t.ProgressTarget = c.TrackerBadgeCount
	t.Necessary = categorySet(c.NecessaryCategories)
	t.Unnecessary = categorySet(c.UnnecessaryCategories)
	return t
}

func categorySet(names []string) map[core.Category]bool {
	set := make(map[core.Category]bool, len(names))
	for _, name := range names {
		set[core.Category(name)] = true
	}
	return set
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.RequestsPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RequestsPerMinute))
	}

	if c.RiskCents < 0 {
		errs = append(errs, fmt.Sprintf("invalid risk threshold %d: cannot be negative", c.RiskCents))
	}
	if c.FoodLoverPercent <= 0 || c.FoodLoverPercent > 100 {
		errs = append(errs, fmt.Sprintf("invalid food lover percent %v: must be in (0, 100]", c.FoodLoverPercent))
	}
	if c.BalancedPercent < 0 || c.BalancedPercent >= c.FoodLoverPercent {
		errs = append(errs, fmt.Sprintf("invalid balanced percent %v: must be non-negative and below the food lover percent", c.BalancedPercent))
	}
	if c.TrackerBadgeCount < 1 {
		errs = append(errs, fmt.Sprintf("invalid tracker badge count %d: must be at least 1", c.TrackerBadgeCount))
	}

	known := make(map[core.Category]bool)
	for _, cat := range core.Categories() {
		known[cat] = true
	}
	for _, name := range append(append([]string{}, c.NecessaryCategories...), c.UnnecessaryCategories...) {
		if !known[core.Category(name)] {
			errs = append(errs, fmt.Sprintf("unknown category '%s' in classification sets", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
