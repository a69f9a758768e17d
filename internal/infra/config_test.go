package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("ALLOWED_IMAGE_FORMATS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.RateLimitPerMin != 60 {
		t.Fatalf("RateLimitPerMin mismatch: got %d want 60", cfg.RateLimitPerMin)
	}
	if cfg.OpenAITimeout != 60*time.Second {
		t.Fatalf("OpenAITimeout mismatch: got %s", cfg.OpenAITimeout)
	}
	want := []string{"png", "jpg", "jpeg", "webp"}
	if len(cfg.AllowedImageFormats) != len(want) {
		t.Fatalf("AllowedImageFormats mismatch: %#v", cfg.AllowedImageFormats)
	}
	for i, f := range want {
		if cfg.AllowedImageFormats[i] != f {
			t.Fatalf("AllowedImageFormats[%d] = %q, want %q", i, cfg.AllowedImageFormats[i], f)
		}
	}
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when OPENAI_API_KEY unset")
	}
}

func TestLoadConfigRejectsNonPositiveRateLimit(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-5")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for non-positive rate limit")
	}
}

func TestLoadConfigTrimsFormatList(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ALLOWED_IMAGE_FORMATS", " png , webp ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if len(cfg.AllowedImageFormats) != 2 || cfg.AllowedImageFormats[0] != "png" || cfg.AllowedImageFormats[1] != "webp" {
		t.Fatalf("AllowedImageFormats mismatch: %#v", cfg.AllowedImageFormats)
	}
}
