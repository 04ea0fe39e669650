package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

type Config struct {
	DiscordToken string
	DiscordGuild string // optional: empty registers commands globally

	DataFile    string // JSON document with per-guild settings
	DatabaseURL string // optional: without it applications live in memory
	HTTPAddr    string
	LogDir      string
	LogLevel    string

	ActivityType string // playing | listening | watching | competing
	ActivityName string

	RetentionDays int // janitor
}

// Load reads the process environment. A missing token is the one fatal path.
func Load() Config {
	cfg, err := LoadFrom(os.Getenv)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	return cfg
}

func LoadFrom(getenv func(string) string) (Config, error) {
	var missing []string
	get := func(k string, req bool, def string) string {
		v := strings.TrimSpace(getenv(k))
		if v == "" {
			if req {
				missing = append(missing, k)
			}
			return def
		}
		return v
	}

	cfg := Config{
		DiscordToken: get("DISCORD_BOT_TOKEN", true, ""),
		DiscordGuild: get("DISCORD_GUILD_ID", false, ""),
		DataFile:     get("DATA_FILE", false, "server_data.json"),
		DatabaseURL:  get("DATABASE_URL", false, ""),
		HTTPAddr:     get("HTTP_ADDR", false, ":8080"),
		LogDir:       get("LOG_DIR", false, "logs"),
		LogLevel:     get("LOG_LEVEL", false, "info"),
		ActivityType: strings.ToLower(get("BOT_ACTIVITY_TYPE", false, "playing")),
		ActivityName: get("BOT_ACTIVITY_NAME", false, "/verify-panel"),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing env %s", strings.Join(missing, ", "))
	}

	cfg.RetentionDays = 30
	if v := get("APPLICATION_RETENTION_DAYS", false, ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid APPLICATION_RETENTION_DAYS %q", v)
		}
		cfg.RetentionDays = n
	}
	return cfg, nil
}

// BotAuth returns the token with the "Bot " prefix discordgo expects.
func (c Config) BotAuth() string {
	auth := strings.TrimSpace(c.DiscordToken)
	if !strings.HasPrefix(strings.ToLower(auth), "bot ") {
		auth = "Bot " + auth
	}
	return auth
}
