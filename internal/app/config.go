package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/forPelevin/tredit/internal/editor"
	"github.com/forPelevin/tredit/internal/playback"
	"github.com/forPelevin/tredit/internal/ports/adapters/httpapi"
)

type Config struct {
	BaseURL      string
	AllowedHosts []string
	Token        string

	TextDebounce   time.Duration
	BoundsDebounce time.Duration
	PollInterval   time.Duration
	RequestTimeout time.Duration
	AutoContinue   bool
	// FallbackDuration is the source length used when it can't be learned
	// from the player. Zero derives it from the last segment end.
	FallbackDuration float64

	LogLevel  string
	LogFormat string
}

// ConfigFromEnv returns defaults overlaid with TREDIT_* variables.
func ConfigFromEnv() Config {
	return Config{
		BaseURL:        getenvDefault("TREDIT_BASE_URL", httpapi.DefaultBaseURL),
		AllowedHosts:   splitList(os.Getenv("TREDIT_ALLOWED_HOSTS")),
		Token:          os.Getenv("TREDIT_API_TOKEN"),
		TextDebounce:   editor.DefaultTextDebounce,
		BoundsDebounce: editor.DefaultBoundsDebounce,
		PollInterval:   playback.DefaultPollInterval,
		RequestTimeout: httpapi.DefaultRequestTimeout,
		AutoContinue:   true,
		LogLevel:       getenvDefault("TREDIT_LOG_LEVEL", "info"),
		LogFormat:      getenvDefault("TREDIT_LOG_FORMAT", "text"),
	}
}

func (c Config) Validate() error {
	if c.TextDebounce <= 0 || c.BoundsDebounce <= 0 {
		return errors.New("debounce delays must be > 0")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be > 0")
	}
	if c.FallbackDuration < 0 {
		return fmt.Errorf("duration must be >= 0, got %v", c.FallbackDuration)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return httpapi.ValidateBaseURL(c.BaseURL, c.AllowedHosts)
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
