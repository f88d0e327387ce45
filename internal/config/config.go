package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/TheLazyLemur/gatherbot/internal/core"
	"github.com/TheLazyLemur/gatherbot/internal/logging"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Keys lists every environment variable the bot reads.
var Keys = []string{
	"DISCORD_TOKEN",
	"APPLICATION_ID",
	"DEV_GUILD_ID",
	"TYPING_MS_PER_CHAR",
	"GATHER_SCRIPT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DASHBOARD_ADDR",
	"DASHBOARD_PASSWORD",
}

type Config struct {
	DiscordToken  string
	ApplicationID string
	// DevGuildID, when set, registers commands in that guild only.
	DevGuildID        string
	TypingPerChar     time.Duration
	GatherScript      string
	LogLevel          slog.Level
	LogFormat         string
	DashboardAddr     string
	DashboardPassword string
}

// Load reads config from env map. For production use LoadFromEnv.
func Load(env map[string]string) (*Config, error) {
	discordToken := env["DISCORD_TOKEN"]
	if discordToken == "" {
		return nil, errors.New("DISCORD_TOKEN required")
	}

	applicationID := strings.TrimSpace(env["APPLICATION_ID"])
	if applicationID == "" {
		return nil, errors.New("APPLICATION_ID required")
	}
	if !isSnowflake(applicationID) {
		return nil, errors.Errorf("invalid APPLICATION_ID %q: must be numeric", applicationID)
	}

	devGuildID := strings.TrimSpace(env["DEV_GUILD_ID"])
	if devGuildID != "" && !isSnowflake(devGuildID) {
		return nil, errors.Errorf("invalid DEV_GUILD_ID %q: must be numeric", devGuildID)
	}

	perChar := core.DefaultPerChar
	if s := strings.TrimSpace(env["TYPING_MS_PER_CHAR"]); s != "" {
		ms, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return nil, errors.Errorf("invalid TYPING_MS_PER_CHAR %q: must be a non-negative integer", s)
		}
		perChar = time.Duration(ms) * time.Millisecond
	}

	level := slog.LevelInfo
	if s := strings.TrimSpace(env["LOG_LEVEL"]); s != "" {
		if err := level.UnmarshalText([]byte(s)); err != nil {
			return nil, errors.Errorf("invalid LOG_LEVEL %q", s)
		}
	}

	logFormat := strings.ToLower(strings.TrimSpace(env["LOG_FORMAT"]))
	switch logFormat {
	case "":
		logFormat = logging.FormatText
	case logging.FormatText, logging.FormatJSON:
	default:
		return nil, errors.Errorf("invalid LOG_FORMAT %q: must be text or json", logFormat)
	}

	return &Config{
		DiscordToken:      discordToken,
		ApplicationID:     applicationID,
		DevGuildID:        devGuildID,
		TypingPerChar:     perChar,
		GatherScript:      strings.TrimSpace(env["GATHER_SCRIPT"]),
		LogLevel:          level,
		LogFormat:         logFormat,
		DashboardAddr:     strings.TrimSpace(env["DASHBOARD_ADDR"]),
		DashboardPassword: env["DASHBOARD_PASSWORD"],
	}, nil
}

// LoadFromEnv loads config from os environment variables, an optional dotenv
// file and an optional config file. Environment variables win over the config
// file, whose keys are the lower-cased variable names.
func LoadFromEnv(configFile, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "loading env file %s", envFile)
		}
	} else if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "loading .env")
	}

	v := viper.New()
	for _, key := range Keys {
		if err := v.BindEnv(strings.ToLower(key), key); err != nil {
			return nil, errors.Wrapf(err, "binding %s", key)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", configFile)
		}
	}

	env := make(map[string]string, len(Keys))
	for _, key := range Keys {
		env[key] = v.GetString(strings.ToLower(key))
	}
	return Load(env)
}

func isSnowflake(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}
