// Package config loads the gateway's configuration from environment
// variables and command-line flags.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Config holds every option the restic-115 gateway recognizes. CLI flag
// names and environment variables are equivalent; flags take their default
// from the environment so either source (or both) can be used.
type Config struct {
	AccessToken    string
	RefreshToken   string
	RepoPath       string
	ListenAddr     string
	APIBase        string
	UserAgent      string
	PersistTokens  bool
	TokenStorePath string
	LogLevel       slog.Level
	SpoolDir       string
	RateLimitQPS   float64

	// TokenInvalidCodes is the configurable superset of envelope `code`
	// values that mean "access token is no longer valid". It is read from
	// RESTIC115_TOKEN_INVALID_CODES only; there is no flag for it.
	TokenInvalidCodes []int
}

// defaultTokenInvalidCodes is the superset observed across the provider's
// debugging notes; kept as a var (not a literal at the call site) so it can
// be overridden per deployment via RESTIC115_TOKEN_INVALID_CODES.
var defaultTokenInvalidCodes = []int{40140125, 40140126, 40140127, 40140128, 40140129}

// Load parses flags (falling back to environment variables) into a Config.
// It does not validate required fields; callers check AccessToken/RefreshToken
// before use.
func Load() Config {
	cfg := Config{}

	pflag.StringVar(&cfg.AccessToken, "access-token", envOr("OPEN115_ACCESS_TOKEN", ""), "115 Open Platform access token")
	pflag.StringVar(&cfg.RefreshToken, "refresh-token", envOr("OPEN115_REFRESH_TOKEN", ""), "115 Open Platform refresh token")
	pflag.StringVar(&cfg.RepoPath, "repo-path", envOr("RESTIC115_REPO_PATH", "/restic-backup"), "repository root on the 115 drive")
	pflag.StringVar(&cfg.ListenAddr, "listen-addr", envOr("RESTIC115_LISTEN_ADDR", "127.0.0.1:8000"), "HTTP listen address")
	pflag.StringVar(&cfg.APIBase, "api-base", envOr("RESTIC115_API_BASE", "https://proapi.115.com"), "115 Open Platform API base URL")
	pflag.StringVar(&cfg.UserAgent, "user-agent", envOr("RESTIC115_USER_AGENT", "restic-115"), "User-Agent header sent to the provider")
	pflag.BoolVar(&cfg.PersistTokens, "persist-tokens", envOr("RESTIC115_PERSIST_TOKENS", "false") == "true", "rewrite refreshed tokens back to the token store path")
	pflag.StringVar(&cfg.TokenStorePath, "token-store-path", envOr("RESTIC115_TOKEN_STORE_PATH", ".env"), "file to persist refreshed tokens into")
	logLevel := pflag.String("log-level", envOr("RESTIC115_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	pflag.StringVar(&cfg.SpoolDir, "spool-dir", envOr("RESTIC115_SPOOL_DIR", os.TempDir()), "directory for spooling upload bodies before transfer")
	rateLimitQPS := pflag.Float64("rate-limit-qps", envFloat("RESTIC115_RATE_LIMIT_QPS", 0), "optional process-wide cap on provider requests per second; 0 disables the budget")

	pflag.Parse()

	cfg.RateLimitQPS = *rateLimitQPS

	cfg.LogLevel = parseLogLevel(*logLevel)
	cfg.TokenInvalidCodes = parseTokenInvalidCodes(envOr("RESTIC115_TOKEN_INVALID_CODES", ""))

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseTokenInvalidCodes parses a comma-separated override list; an empty
// or unparsable override falls back to defaultTokenInvalidCodes rather than
// erroring, since the code set is advisory.
func parseTokenInvalidCodes(s string) []int {
	if s == "" {
		return append([]int(nil), defaultTokenInvalidCodes...)
	}
	var codes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n := 0
		ok := true
		for _, c := range part {
			if c < '0' || c > '9' {
				ok = false
				break
			}
			n = n*10 + int(c-'0')
		}
		if ok {
			codes = append(codes, n)
		}
	}
	if len(codes) == 0 {
		return append([]int(nil), defaultTokenInvalidCodes...)
	}
	return codes
}
