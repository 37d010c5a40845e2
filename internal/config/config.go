package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"plane-digest/internal/fetch"
	"plane-digest/internal/plane"

	"github.com/hay-kot/criterio"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Plane              plane.Config
	Retry              plane.RetryPolicy
	Concurrency        int
	ProjectConcurrency int
	MaxPages           int
	TTLs               fetch.TTLs
	IgnoredMembers     []string
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// The binary's directory wins: MCP hosts start the server from arbitrary cwds.
	if exePath, err := os.Executable(); err == nil {
		envPath := filepath.Join(filepath.Dir(exePath), ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from a variable lookup, applying defaults for
// anything unset. Malformed numbers are reported rather than silently defaulted.
func FromEnv(lookup func(string) (string, bool)) (*AppConfig, error) {
	e := env{lookup: lookup}
	defaults := fetch.DefaultTTLs()
	retry := plane.DefaultRetryPolicy()

	cfg := &AppConfig{
		Plane: plane.Config{
			BaseURL:   strings.TrimRight(e.str("PLANE_API_URL", ""), "/"),
			APIKey:    e.str("PLANE_API_KEY", ""),
			Workspace: e.str("PLANE_WORKSPACE_SLUG", ""),
			Timeout:   e.seconds("PLANE_TIMEOUT_SECONDS", 60*time.Second),
			PageSize:  e.number("PLANE_PAGE_SIZE", 100),
		},
		Retry: plane.RetryPolicy{
			MaxAttempts:  e.number("PLANE_MAX_RETRIES", retry.MaxAttempts),
			InitialDelay: time.Duration(e.number("PLANE_RETRY_INITIAL_DELAY_MS", int(retry.InitialDelay/time.Millisecond))) * time.Millisecond,
		},
		Concurrency:        e.number("PLANE_CONCURRENCY", plane.DefaultConcurrency),
		ProjectConcurrency: e.number("PLANE_PROJECT_CONCURRENCY", 2),
		MaxPages:           e.number("PLANE_MAX_PAGES", fetch.DefaultMaxPages),
		TTLs: fetch.TTLs{
			Projects:   e.seconds("PLANE_TTL_PROJECTS_SECONDS", defaults.Projects),
			Users:      e.seconds("PLANE_TTL_USERS_SECONDS", defaults.Users),
			Members:    e.seconds("PLANE_TTL_MEMBERS_SECONDS", defaults.Members),
			WorkItems:  e.seconds("PLANE_TTL_WORK_ITEMS_SECONDS", defaults.WorkItems),
			Activities: e.seconds("PLANE_TTL_ACTIVITIES_SECONDS", defaults.Activities),
			Comments:   e.seconds("PLANE_TTL_COMMENTS_SECONDS", defaults.Comments),
			Subitems:   e.seconds("PLANE_TTL_SUBITEMS_SECONDS", defaults.Subitems),
			Cycles:     e.seconds("PLANE_TTL_CYCLES_SECONDS", defaults.Cycles),
		},
		IgnoredMembers: splitList(e.str("PLANE_IGNORED_MEMBERS", "bot")),
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	return cfg, nil
}

// Validate checks that the configuration can reach Plane and that every width and
// limit is usable.
func (c *AppConfig) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if c.Plane.BaseURL == "" {
		errs = errs.Append("PLANE_API_URL", errors.New("is required"))
	}
	if c.Plane.APIKey == "" {
		errs = errs.Append("PLANE_API_KEY", errors.New("is required"))
	}
	if c.Plane.Workspace == "" {
		errs = errs.Append("PLANE_WORKSPACE_SLUG", errors.New("is required"))
	}
	for _, f := range []struct {
		name  string
		value int
	}{
		{"PLANE_CONCURRENCY", c.Concurrency},
		{"PLANE_PROJECT_CONCURRENCY", c.ProjectConcurrency},
		{"PLANE_MAX_RETRIES", c.Retry.MaxAttempts},
		{"PLANE_MAX_PAGES", c.MaxPages},
		{"PLANE_PAGE_SIZE", c.Plane.PageSize},
	} {
		if f.value < 1 {
			errs = errs.Append(f.name, fmt.Errorf("must be positive, got %d", f.value))
		}
	}
	if c.Retry.InitialDelay < 0 {
		errs = errs.Append("PLANE_RETRY_INITIAL_DELAY_MS", errors.New("must not be negative"))
	}

	return criterio.ValidateStruct(
		criterio.Run("PLANE_API_URL", c.Plane.BaseURL, absoluteURL),
		errs.ToError(),
	)
}

func absoluteURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL, got %q", raw)
	}
	return nil
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, fallback string) string {
	if value, ok := e.lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func (e *env) number(key string, fallback int) int {
	value, ok := e.lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func (e *env) seconds(key string, fallback time.Duration) time.Duration {
	n := e.number(key, int(fallback/time.Second))
	return time.Duration(n) * time.Second
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
