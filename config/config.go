package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every knob the pipeline components need. Components receive
// it (or the relevant slice of it) at construction; there is no package-level
// shared state.
type Config struct {
	ProjectDir   string `json:"project_dir"`
	DataDir      string `json:"data_dir"`
	ProcessedDir string `json:"processed_dir"`
	DatabasePath string `json:"database_path"`

	// Tickers under prediction and their company names, used by the news
	// relevance filter.
	Tickers         []string          `json:"tickers"`
	TickerCompanies map[string]string `json:"ticker_companies"`

	// Market session parameters. CutoffHour is the market-close hour in the
	// market's local time; news published at or after it rolls one extra
	// trading day forward.
	MarketTimezone string   `json:"market_timezone"`
	CutoffHour     int      `json:"cutoff_hour"`
	Holidays       []string `json:"holidays"`

	LookbackDays int `json:"lookback_days"`

	MaxRetries     int           `json:"max_retries"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`

	NewsAPIKey        string  `json:"-"`
	NewsCallsPerMin   int     `json:"news_calls_per_min"`
	MinRetentionRatio float64 `json:"min_retention_ratio"`

	TrainRatio float64 `json:"train_ratio"`
	ValRatio   float64 `json:"val_ratio"`

	SequenceLength int `json:"sequence_length"`

	LogLevel string `json:"log_level"`
}

// DefaultTickers is the fixed set of symbols the pipeline predicts.
var DefaultTickers = []string{
	"AAPL", "NVDA", "WMT", "LLY", "JPM",
	"XOM", "MCD", "TSLA", "DAL", "MAR",
	"GS", "NFLX", "META", "ORCL", "PLTR",
}

var defaultCompanies = map[string]string{
	"AAPL": "Apple", "NVDA": "NVIDIA", "WMT": "Walmart",
	"LLY": "Eli Lilly", "JPM": "JPMorgan Chase", "XOM": "Exxon Mobil",
	"MCD": "McDonald's", "TSLA": "Tesla", "DAL": "Delta Air Lines",
	"MAR": "Marriott International", "GS": "Goldman Sachs Group",
	"NFLX": "Netflix", "META": "Meta", "ORCL": "Oracle", "PLTR": "Palantir",
}

// defaultHolidays lists NYSE full-day closures. Dates outside this range fall
// back to weekend-only trading-day logic.
var defaultHolidays = []string{
	"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29", "2024-05-27",
	"2024-06-19", "2024-07-04", "2024-09-02", "2024-11-28", "2024-12-25",
	"2025-01-01", "2025-01-20", "2025-02-17", "2025-04-18", "2025-05-26",
	"2025-06-19", "2025-07-04", "2025-09-01", "2025-11-27", "2025-12-25",
	"2026-01-01", "2026-01-19", "2026-02-16", "2026-04-03", "2026-05-25",
	"2026-06-19", "2026-07-03", "2026-09-07", "2026-11-26", "2026-12-25",
}

// DefaultConfig builds a configuration from built-in defaults, a .env file if
// one is present, and environment variable overrides.
func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()

	cfg := &Config{
		ProjectDir:   currentDir,
		DataDir:      filepath.Join(currentDir, "data"),
		ProcessedDir: filepath.Join(currentDir, "data", "processed"),
		DatabasePath: filepath.Join(currentDir, "data", "stockpipe.db"),

		Tickers:         append([]string(nil), DefaultTickers...),
		TickerCompanies: defaultCompanies,

		MarketTimezone: "America/New_York",
		CutoffHour:     16,
		Holidays:       append([]string(nil), defaultHolidays...),

		LookbackDays: 21,

		MaxRetries:     3,
		RetryBaseDelay: 2 * time.Second,

		NewsCallsPerMin:   60,
		MinRetentionRatio: 0.10,

		TrainRatio: 0.70,
		ValRatio:   0.15,

		SequenceLength: 60,

		LogLevel: "info",
	}

	_ = godotenv.Load()
	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("STOCKPIPE_DATA_DIR"); val != "" {
		c.DataDir = val
		c.ProcessedDir = filepath.Join(val, "processed")
		c.DatabasePath = filepath.Join(val, "stockpipe.db")
	}
	if val := os.Getenv("STOCKPIPE_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("STOCKPIPE_TICKERS"); val != "" {
		var tickers []string
		for _, t := range strings.Split(val, ",") {
			if t = strings.TrimSpace(strings.ToUpper(t)); t != "" {
				tickers = append(tickers, t)
			}
		}
		if len(tickers) > 0 {
			c.Tickers = tickers
		}
	}
	if val := os.Getenv("NEWS_API_KEY"); val != "" {
		c.NewsAPIKey = val
	}
	if val := os.Getenv("STOCKPIPE_CUTOFF_HOUR"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.CutoffHour = v
		}
	}
	if val := os.Getenv("STOCKPIPE_LOOKBACK_DAYS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.LookbackDays = v
		}
	}
	if val := os.Getenv("STOCKPIPE_MAX_RETRIES"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.MaxRetries = v
		}
	}
	if val := os.Getenv("STOCKPIPE_NEWS_CALLS_PER_MIN"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 0 {
			c.NewsCallsPerMin = v
		}
	}
	if val := os.Getenv("STOCKPIPE_MIN_RETENTION"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil && v >= 0 && v <= 1 {
			c.MinRetentionRatio = v
		}
	}
	if val := os.Getenv("STOCKPIPE_SEQUENCE_LENGTH"); val != "" {
		if v, err := strconv.Atoi(val); err == nil && v > 1 {
			c.SequenceLength = v
		}
	}
	if val := os.Getenv("STOCKPIPE_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
}

// EnsureDirectories creates the data directories if they are missing.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.ProcessedDir, filepath.Dir(c.DatabasePath)}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

// CompanyName returns the company name mapped to a ticker, or "" when the
// ticker is unknown.
func (c *Config) CompanyName(ticker string) string {
	return c.TickerCompanies[strings.ToUpper(ticker)]
}
