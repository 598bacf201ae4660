package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string
	Env      string
	RedisURL string

	// Mailbox
	MailboxTTL   time.Duration // Redis only; the in-memory mailbox never expires
	MaxBodyBytes int64         // agent replies carry base64 audio

	// Media server (session provisioning)
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string
	PublicLiveKitURL string // serverUrl handed to browsers; derived from Host when empty
	AgentName        string

	// Phone calls: dispatch the agent into rooms created for SIP calls
	SIPDispatch     bool
	SIPRoomPrefix   string
	SIPScanInterval time.Duration

	// Text-to-speech service
	TTSURL string

	// Rate limiting
	RateLimitWhitelist []string // IPs or CIDRs exempt from rate limiting

	CORSOrigins []string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "3000"),
		Env:              getEnv("ENV", "development"),
		RedisURL:         os.Getenv("REDIS_URL"),
		MailboxTTL:       getDuration("MAILBOX_TTL", 24*time.Hour),
		MaxBodyBytes:     getInt64("MAX_BODY_BYTES", 2<<20),
		LiveKitURL:       getEnv("LIVEKIT_URL", "http://livekit:7880"),
		LiveKitAPIKey:    getEnv("LIVEKIT_API_KEY", "devkey"),
		LiveKitAPISecret: getEnv("LIVEKIT_API_SECRET", "secret"),
		PublicLiveKitURL: os.Getenv("PUBLIC_LIVEKIT_URL"),
		AgentName:        getEnv("AGENT_NAME", "voice-assistant"),
		SIPDispatch:      getBool("SIP_DISPATCH", true),
		SIPRoomPrefix:    getEnv("SIP_ROOM_PREFIX", "sip-call-"),
		SIPScanInterval:  getDuration("SIP_SCAN_INTERVAL", 15*time.Second),
		TTSURL:           strings.TrimRight(getEnv("XTTS_API_URL", "http://localhost:8020"), "/"),
	}

	cfg.RateLimitWhitelist = getList("RATE_LIMIT_WHITELIST")
	cfg.CORSOrigins = getList("CORS_ORIGINS")
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	// In production, refuse the development media server credentials
	if cfg.Env == "production" && cfg.LiveKitAPISecret == "secret" {
		panic("LIVEKIT_API_SECRET must be set in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// OriginPatterns returns the CORS origins as host patterns for websocket
// origin checks.
func (c *Config) OriginPatterns() []string {
	patterns := make([]string, 0, len(c.CORSOrigins))
	for _, origin := range c.CORSOrigins {
		if i := strings.Index(origin, "://"); i >= 0 {
			origin = origin[i+3:]
		}
		patterns = append(patterns, strings.TrimRight(origin, "/"))
	}
	return patterns
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getList parses a comma-separated variable, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, entry := range strings.Split(os.Getenv(key), ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			out = append(out, entry)
		}
	}
	return out
}
