package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileEnv names the environment variable that points at an optional config file.
const ConfigFileEnv = "RECURRING_CONFIG"

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend    string
	SQLiteDBPath   string
	MemorySeedFile string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID     string
	GoogleTransactionsSheet string
	GoogleRecurringSheet    string
	GoogleOAuthClientFile   string
	GoogleOAuthTokenFile    string
	GoogleOAuthClientJSON   string
	GoogleOAuthTokenJSON    string

	// Detection
	DetectInterval  time.Duration
	DetectWorkers   int
	DefaultDaysBack int
	UpcomingDays    int

	// HTTP summary cache
	SummaryCacheTTL time.Duration

	// Logging
	LogLevel string
	LogFile  string
}

var validBackends = []string{"memory", "sheets", "sqlite"}

var validLogLevels = []string{"debug", "info", "warn", "error"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("data_backend", "sqlite")
	v.SetDefault("sqlite_db_path", "./data/recurring.db")
	v.SetDefault("memory_seed_file", "")

	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "recurring")
	v.SetDefault("amqp_queue", "detect_requests")

	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_transactions_sheet", "Transactions")
	v.SetDefault("google_recurring_sheet", "Recurring")
	v.SetDefault("google_oauth_client_file", "")
	v.SetDefault("google_oauth_token_file", "")
	v.SetDefault("google_oauth_client_json", "")
	v.SetDefault("google_oauth_token_json", "")

	v.SetDefault("detect_interval", time.Hour)
	v.SetDefault("detect_workers", 4)
	v.SetDefault("default_days_back", 365)
	v.SetDefault("upcoming_days", 30)
	v.SetDefault("summary_cache_ttl", 30*time.Second)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// Load reads configuration from defaults, the optional file named by RECURRING_CONFIG and
// the environment, in increasing order of precedence. Environment keys are the upper-case
// config keys (PORT, SQLITE_DB_PATH, ...).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:           v.GetString("port"),
		DataBackend:    strings.ToLower(v.GetString("data_backend")),
		SQLiteDBPath:   v.GetString("sqlite_db_path"),
		MemorySeedFile: v.GetString("memory_seed_file"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		GoogleSpreadsheetID:     v.GetString("google_spreadsheet_id"),
		GoogleTransactionsSheet: v.GetString("google_transactions_sheet"),
		GoogleRecurringSheet:    v.GetString("google_recurring_sheet"),
		GoogleOAuthClientFile:   v.GetString("google_oauth_client_file"),
		GoogleOAuthTokenFile:    v.GetString("google_oauth_token_file"),
		GoogleOAuthClientJSON:   v.GetString("google_oauth_client_json"),
		GoogleOAuthTokenJSON:    v.GetString("google_oauth_token_json"),

		DetectInterval:  v.GetDuration("detect_interval"),
		DetectWorkers:   v.GetInt("detect_workers"),
		DefaultDaysBack: v.GetInt("default_days_back"),
		UpcomingDays:    v.GetInt("upcoming_days"),

		SummaryCacheTTL: v.GetDuration("summary_cache_ttl"),

		LogLevel: strings.ToLower(v.GetString("log_level")),
		LogFile:  v.GetString("log_file"),
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
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

	if c.DataBackend == "sheets" {
		errors = append(errors, c.validateSheets()...)
	}

	if c.DetectInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid detect interval %v: must be at least 1 minute", c.DetectInterval))
	} else if c.DetectInterval > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid detect interval %v: must be at most 7 days", c.DetectInterval))
	}

	if c.DetectWorkers < 1 || c.DetectWorkers > 64 {
		errors = append(errors, fmt.Sprintf("invalid detect workers %d: must be between 1 and 64", c.DetectWorkers))
	}
	if c.DefaultDaysBack < 1 || c.DefaultDaysBack > 3650 {
		errors = append(errors, fmt.Sprintf("invalid default days back %d: must be between 1 and 3650", c.DefaultDaysBack))
	}
	if c.UpcomingDays < 0 || c.UpcomingDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid upcoming days %d: must be between 0 and 366", c.UpcomingDays))
	}

	if c.SummaryCacheTTL < time.Second || c.SummaryCacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: must be between 1s and 1h", c.SummaryCacheTTL))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func (c *Config) validateSheets() []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
	}
	if c.GoogleTransactionsSheet == "" {
		errors = append(errors, "Google transactions sheet name is required when using sheets backend")
	}

	// Must have either client file or JSON
	hasClientFile := c.GoogleOAuthClientFile != ""
	if !hasClientFile && c.GoogleOAuthClientJSON == "" {
		errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided for sheets backend")
	}

	// Must have either token file or JSON
	hasTokenFile := c.GoogleOAuthTokenFile != ""
	if !hasTokenFile && c.GoogleOAuthTokenJSON == "" {
		errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for sheets backend")
	}

	if hasClientFile {
		if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
		}
	}
	if hasTokenFile {
		if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
		}
	}
	return errors
}
