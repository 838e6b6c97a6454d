package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/stake-plus/multisig-relay/src/data"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SMTP holds the outgoing mail settings for the email channel.
type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Config contains every runtime setting of the relay.
type Config struct {
	MySQLDSN    string
	RedisURL    string
	JWTSecret   string
	Port        string
	LogLevel    string
	Development bool
	CORSOrigins []string

	PriceAPIURL       string
	PriceCacheTTL     time.Duration
	PendingCacheTTL   time.Duration
	DraftTTL          time.Duration
	ReconcileInterval time.Duration
	ReminderInterval  time.Duration

	DiscordToken  string
	TelegramToken string
	SlackWebhook  string
	SMTP          SMTP
	NotifyStream  string

	RateLimitPerMinute int
	FanoutLimit        int
	ProposerSeed       string
}

// Loader resolves settings in order DB settings table, environment/config
// file, default.
type Loader struct {
	v *viper.Viper
}

// NewLoader reads an optional config file and binds environment variables.
// An empty path searches for config.yaml in the working directory.
func NewLoader(path string) *Loader {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		zap.L().Debug("config file not found, using env variables", zap.Error(err))
	}
	return &Loader{v: v}
}

// FromViper wraps an existing viper instance.
func FromViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Overlay loads the settings table so later lookups prefer DB values.
func (l *Loader) Overlay(db *gorm.DB) error {
	return data.LoadSettings(db)
}

// GetSetting retrieves a setting with env fallback
func (l *Loader) GetSetting(name, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" {
		val = l.v.GetString(name)
	}
	if val == "" {
		val = defaultValue
	}
	return val
}

func (l *Loader) getInt(name string, def int) int {
	if n, err := strconv.Atoi(l.GetSetting(name, "")); err == nil && n > 0 {
		return n
	}
	return def
}

func (l *Loader) getDuration(name string, def time.Duration) time.Duration {
	raw := l.GetSetting(name, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	// bare numbers are seconds
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func (l *Loader) getBool(name string, def bool) bool {
	raw := strings.ToLower(l.GetSetting(name, ""))
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// SafeServiceURL returns the Safe Transaction Service override for a network.
func (l *Loader) SafeServiceURL(network string) string {
	return l.GetSetting("safe_service_url_"+strings.ToLower(network), "")
}

// Load builds the Config from the current sources.
func (l *Loader) Load() Config {
	return Config{
		MySQLDSN:    l.GetSetting("mysql_dsn", ""),
		RedisURL:    l.GetSetting("redis_url", "redis://127.0.0.1:6379/0"),
		JWTSecret:   l.GetSetting("jwt_secret", ""),
		Port:        l.GetSetting("port", "8080"),
		LogLevel:    l.GetSetting("log_level", "info"),
		Development: l.getBool("development", false),
		CORSOrigins: parseCSV(l.GetSetting("cors_origins", "")),

		PriceAPIURL:       l.GetSetting("price_api_url", "https://api.coingecko.com/api/v3"),
		PriceCacheTTL:     l.getDuration("price_cache_ttl", 5*time.Minute),
		PendingCacheTTL:   l.getDuration("pending_cache_ttl", 30*time.Second),
		DraftTTL:          l.getDuration("draft_ttl", 15*time.Minute),
		ReconcileInterval: l.getDuration("reconcile_interval", time.Minute),
		ReminderInterval:  l.getDuration("reminder_interval", 24*time.Hour),

		DiscordToken:  l.GetSetting("discord_token", ""),
		TelegramToken: l.GetSetting("telegram_token", ""),
		SlackWebhook:  l.GetSetting("slack_webhook", ""),
		SMTP: SMTP{
			Host:     l.GetSetting("smtp_host", ""),
			Port:     l.getInt("smtp_port", 587),
			Username: l.GetSetting("smtp_username", ""),
			Password: l.GetSetting("smtp_password", ""),
			From:     l.GetSetting("smtp_from", ""),
		},
		NotifyStream: l.GetSetting("notify_stream", "multisig.notifications"),

		RateLimitPerMinute: l.getInt("rate_limit_per_minute", 60),
		FanoutLimit:        l.getInt("fanout_limit", 8),
		ProposerSeed:       l.GetSetting("proposer_seed", ""),
	}
}

func parseCSV(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
