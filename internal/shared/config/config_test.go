package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-worker")
	t.Setenv("ENV", "local")

	cfg := Load()
	if cfg.MetricsPort != "9097" || cfg.HTTPPort != "" {
		t.Errorf("ports = %q/%q", cfg.HTTPPort, cfg.MetricsPort)
	}
	if !cfg.RunMigrations || !cfg.SeedDemo {
		t.Error("local env should run migrations and seed demo data by default")
	}
	if cfg.TopicBetSettled != "bet_settled" || cfg.RedisWinsChannel != "bet_wins_broadcast" {
		t.Errorf("topics = %q %q", cfg.TopicBetSettled, cfg.RedisWinsChannel)
	}
	s := cfg.Settlement
	if s.Interval != time.Minute || s.GraceWindow != 2*time.Hour || s.Concurrency != 4 || s.BonusRate != 0.01 {
		t.Errorf("settlement = %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "settlement-service")
	t.Setenv("ENV", "prod")
	t.Setenv("HTTP_PORT_SETTLEMENT", "9000")
	t.Setenv("SETTLEMENT_INTERVAL", "30s")
	t.Setenv("SETTLEMENT_CONCURRENCY", "not-a-number")

	cfg := Load()
	if cfg.HTTPPort != "9000" || cfg.MetricsPort != "9099" {
		t.Errorf("ports = %q/%q", cfg.HTTPPort, cfg.MetricsPort)
	}
	if cfg.RunMigrations {
		t.Error("prod should not run migrations by default")
	}
	if cfg.SeedDemo {
		t.Error("prod must not seed demo data by default")
	}
	if cfg.Settlement.Interval != 30*time.Second {
		t.Errorf("interval = %s", cfg.Settlement.Interval)
	}
	if cfg.Settlement.Concurrency != 4 {
		t.Errorf("invalid number should keep default, got %d", cfg.Settlement.Concurrency)
	}
}

func TestLoadSettlementFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settlement.yaml")
	yaml := "settlement:\n  interval: 15s\n  concurrency: 8\n  bonus_rate: 0.02\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := Config{Settlement: Settlement{
		Interval: time.Minute, GraceWindow: 2 * time.Hour, Concurrency: 4,
		LockTTL: time.Minute, MatchListTTL: 5 * time.Second, BonusRate: 0.01,
	}}
	if err := cfg.LoadSettlementFile(path); err != nil {
		t.Fatal(err)
	}
	s := cfg.Settlement
	if s.Interval != 15*time.Second || s.Concurrency != 8 || s.BonusRate != 0.02 {
		t.Errorf("overrides not applied: %+v", s)
	}
	// campos ausentes no arquivo mantêm o valor anterior
	if s.GraceWindow != 2*time.Hour || s.MatchListTTL != 5*time.Second {
		t.Errorf("missing fields changed: %+v", s)
	}

	if err := cfg.LoadSettlementFile(""); err != nil {
		t.Errorf("empty path: %v", err)
	}
	if err := cfg.LoadSettlementFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestSettlementValidate(t *testing.T) {
	ok := Settlement{Interval: time.Minute, GraceWindow: time.Hour, Concurrency: 1, LockTTL: time.Minute, BonusRate: 0.01}
	tests := []struct {
		name    string
		mutate  func(*Settlement)
		wantErr bool
	}{
		{"valid", func(*Settlement) {}, false},
		{"zero interval", func(s *Settlement) { s.Interval = 0 }, true},
		{"zero concurrency", func(s *Settlement) { s.Concurrency = 0 }, true},
		{"negative grace", func(s *Settlement) { s.GraceWindow = -time.Second }, true},
		{"no lock ttl", func(s *Settlement) { s.LockTTL = 0 }, true},
		{"bonus 100%", func(s *Settlement) { s.BonusRate = 1 }, true},
		{"no bonus", func(s *Settlement) { s.BonusRate = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ok
			tt.mutate(&s)
			if err := s.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_SeedDemoIndependentOfMigrations(t *testing.T) {
	t.Setenv("ENV", "dev")
	t.Setenv("RUN_MIGRATIONS", "true")

	cfg := Load()
	if !cfg.RunMigrations || cfg.SeedDemo {
		t.Errorf("runMigrations=%v seedDemo=%v, want true/false", cfg.RunMigrations, cfg.SeedDemo)
	}
}
