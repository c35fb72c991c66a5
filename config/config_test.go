package config

import (
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Tickers) != 15 {
		t.Fatalf("expected 15 default tickers, got %d", len(cfg.Tickers))
	}
	if cfg.CutoffHour != 16 {
		t.Fatalf("expected cutoff hour 16, got %d", cfg.CutoffHour)
	}
	if cfg.TrainRatio+cfg.ValRatio >= 1.0 {
		t.Fatalf("train+val ratios leave no room for test: %f", cfg.TrainRatio+cfg.ValRatio)
	}
	if cfg.SequenceLength != 60 {
		t.Fatalf("expected sequence length 60, got %d", cfg.SequenceLength)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STOCKPIPE_TICKERS", "aapl, msft ,")
	t.Setenv("STOCKPIPE_CUTOFF_HOUR", "15")
	t.Setenv("STOCKPIPE_MIN_RETENTION", "0.25")

	cfg := DefaultConfig()

	if len(cfg.Tickers) != 2 || cfg.Tickers[0] != "AAPL" || cfg.Tickers[1] != "MSFT" {
		t.Fatalf("ticker override not applied: %v", cfg.Tickers)
	}
	if cfg.CutoffHour != 15 {
		t.Fatalf("cutoff hour override not applied: %d", cfg.CutoffHour)
	}
	if cfg.MinRetentionRatio != 0.25 {
		t.Fatalf("retention override not applied: %f", cfg.MinRetentionRatio)
	}
}

func TestCompanyName(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.CompanyName("tsla"); got != "Tesla" {
		t.Fatalf("expected Tesla, got %q", got)
	}
	if got := cfg.CompanyName("ZZZZ"); got != "" {
		t.Fatalf("expected empty for unknown ticker, got %q", got)
	}
}
