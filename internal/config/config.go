// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "ECOCONNECT_"

// Rate is a number of events allowed per window.
type Rate struct {
	Events int
	Window time.Duration
}

func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Events, r.Window)
}

// ParseRate parses "n/duration", e.g. "5/15m".
func ParseRate(s string) (Rate, error) {
	n, d, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rate{}, fmt.Errorf("rate %q: expected <events>/<window>", s)
	}
	events, err := strconv.Atoi(n)
	if err != nil || events <= 0 {
		return Rate{}, fmt.Errorf("rate %q: events must be a positive integer", s)
	}
	window, err := time.ParseDuration(d)
	if err != nil || window <= 0 {
		return Rate{}, fmt.Errorf("rate %q: invalid window", s)
	}
	return Rate{Events: events, Window: window}, nil
}

// Config holds all server settings.
type Config struct {
	DBPath   string
	Addr     string
	LogPath  string
	LogLevel slog.Level

	// JWTSecret overrides the secret persisted in the database when set.
	JWTSecret   string
	TokenExpiry time.Duration

	CORSOrigins      []string
	WSOriginPatterns []string
	TrustProxy       bool

	LoginRate    Rate
	RegisterRate Rate
	MessageRate  Rate
	UploadRate   Rate
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DBPath:       "ecoconnect.sqlite3",
		Addr:         ":8080",
		LogLevel:     slog.LevelInfo,
		TokenExpiry:  7 * 24 * time.Hour,
		CORSOrigins:  []string{"http://localhost:3000"},
		LoginRate:    Rate{Events: 5, Window: 15 * time.Minute},
		RegisterRate: Rate{Events: 5, Window: time.Hour},
		MessageRate:  Rate{Events: 30, Window: time.Minute},
		UploadRate:   Rate{Events: 10, Window: time.Hour},
	}
}

// Load reads the given .env files (missing files are skipped) into the
// process environment and returns Default overridden by the environment.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv, Default())
}

// FromEnv overrides base with the variables found through lookup.
func FromEnv(lookup func(string) (string, bool), base Config) (Config, error) {
	cfg := base
	get := func(name string) (string, bool) {
		v, ok := lookup(Prefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("DB"); ok {
		cfg.DBPath = v
	}
	if v, ok := get("ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := get("LOG"); ok {
		cfg.LogPath = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("%sLOG_LEVEL: %w", Prefix, err)
		}
	}
	if v, ok := get("JWT_SECRET"); ok {
		cfg.JWTSecret = v
	}
	if v, ok := get("TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%sTOKEN_TTL: invalid duration %q", Prefix, v)
		}
		cfg.TokenExpiry = d
	}
	if v, ok := get("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	if v, ok := get("WS_ORIGINS"); ok {
		cfg.WSOriginPatterns = splitList(v)
	}
	if v, ok := get("TRUST_PROXY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sTRUST_PROXY: %w", Prefix, err)
		}
		cfg.TrustProxy = b
	}

	rates := []struct {
		name string
		dst  *Rate
	}{
		{"LOGIN_RATE", &cfg.LoginRate},
		{"REGISTER_RATE", &cfg.RegisterRate},
		{"MESSAGE_RATE", &cfg.MessageRate},
		{"UPLOAD_RATE", &cfg.UploadRate},
	}
	for _, r := range rates {
		if v, ok := get(r.name); ok {
			rate, err := ParseRate(v)
			if err != nil {
				return Config{}, fmt.Errorf("%s%s: %w", Prefix, r.name, err)
			}
			*r.dst = rate
		}
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
