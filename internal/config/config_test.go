package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DETECTOR_POOL_SIZE", "")
	t.Setenv("PORTRAIT_CACHE_TTL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if cfg.HTTPAddr != ":5000" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTPAddr)
	}
	if cfg.DetectorPoolSize != 4 {
		t.Fatalf("unexpected pool size: %d", cfg.DetectorPoolSize)
	}
	if cfg.PortraitCacheTTL != 10*time.Minute {
		t.Fatalf("unexpected cache ttl: %s", cfg.PortraitCacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DETECTOR_ADDR", "detector:50051")
	t.Setenv("DETECTOR_POOL_SIZE", "2")
	t.Setenv("PORTRAIT_CACHE_TTL", "90s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, https://app.example.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if cfg.DetectorAddr != "detector:50051" || cfg.DetectorPoolSize != 2 {
		t.Fatalf("unexpected detector config: %+v", cfg)
	}
	if cfg.PortraitCacheTTL != 90*time.Second {
		t.Fatalf("unexpected cache ttl: %s", cfg.PortraitCacheTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://app.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("DETECTOR_POOL_SIZE", "zero")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid pool size")
	}

	t.Setenv("DETECTOR_POOL_SIZE", "1")
	t.Setenv("PORTRAIT_CACHE_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid ttl")
	}
}
