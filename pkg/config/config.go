package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port int

	Slack     SlackConfig
	Sheets    SheetsConfig
	Docstore  DocstoreConfig
	Redis     RedisConfig
	Approvals ApprovalsConfig
	Log       LogConfig
}

// SlackConfig holds the bot credentials. Both values are required.
type SlackConfig struct {
	BotToken      string
	SigningSecret string
}

// SheetsConfig points at the tabular log spreadsheet.
type SheetsConfig struct {
	CredentialsFile string
	SpreadsheetID   string
	SheetName       string
}

// DocstoreConfig points at the Firestore mirror.
type DocstoreConfig struct {
	CredentialsFile string
	ProjectID       string
	Collection      string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	NameTTL  time.Duration
}

// ApprovalsConfig tunes the request lifecycle timers.
type ApprovalsConfig struct {
	ReminderDelay    time.Duration
	ResponseTimeout  time.Duration
	DocReminderDelay time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Slack = SlackConfig{
		BotToken:      v.GetString("SLACK_BOT_TOKEN"),
		SigningSecret: v.GetString("SLACK_SIGNING_SECRET"),
	}

	cfg.Sheets = SheetsConfig{
		CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
		SpreadsheetID:   v.GetString("SPREADSHEET_ID"),
		SheetName:       v.GetString("SHEET_NAME"),
	}

	cfg.Docstore = DocstoreConfig{
		CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
		ProjectID:       v.GetString("FIRESTORE_PROJECT_ID"),
		Collection:      v.GetString("FIRESTORE_COLLECTION"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		NameTTL:  parseDuration(v.GetString("REDIS_NAME_TTL"), 12*time.Hour),
	}

	cfg.Approvals = ApprovalsConfig{
		ReminderDelay:    parseDuration(v.GetString("REMINDER_DELAY"), 24*time.Hour),
		ResponseTimeout:  parseDuration(v.GetString("RESPONSE_TIMEOUT"), 48*time.Hour),
		DocReminderDelay: parseDuration(v.GetString("DOC_REMINDER_DELAY"), 24*time.Hour),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate fails fast on missing credentials so the process never starts
// accepting traffic it cannot serve.
func (c *Config) validate() error {
	missing := []string{}
	if c.Slack.BotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.Slack.SigningSecret == "" {
		missing = append(missing, "SLACK_SIGNING_SECRET")
	}
	if c.Sheets.CredentialsFile == "" {
		missing = append(missing, "GOOGLE_CREDENTIALS_FILE")
	}
	if c.Sheets.SpreadsheetID == "" {
		missing = append(missing, "SPREADSHEET_ID")
	}
	if c.Docstore.ProjectID == "" {
		missing = append(missing, "FIRESTORE_PROJECT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Approvals.ReminderDelay >= c.Approvals.ResponseTimeout {
		return fmt.Errorf("REMINDER_DELAY (%s) must be shorter than RESPONSE_TIMEOUT (%s)",
			c.Approvals.ReminderDelay, c.Approvals.ResponseTimeout)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 3000)

	v.SetDefault("SHEET_NAME", "Sheet1")
	v.SetDefault("FIRESTORE_COLLECTION", "change_requests")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("REMINDER_DELAY", "24h")
	v.SetDefault("RESPONSE_TIMEOUT", "48h")
	v.SetDefault("DOC_REMINDER_DELAY", "24h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
