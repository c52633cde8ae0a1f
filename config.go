package main

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/CrowderSoup/launchpad/services"
)

// Config is everything the server and CLI are configured with.
type Config struct {
	Port              string              `yaml:"port"`
	DBPath            string              `yaml:"db_path"`
	JWTSecret         string              `yaml:"jwt_secret"`
	SMTP              services.SMTPConfig `yaml:"smtp"`
	MailMode          services.MailMode   `yaml:"mail_mode"`
	MailTestRecipient string              `yaml:"mail_test_recipient"`
	LogLevel          string              `yaml:"log_level"`
	BannerTTL         time.Duration       `yaml:"banner_ttl"`
	StaticDir         string              `yaml:"static_dir"`

	// MailEndpoint sends notifications through a remote send-email
	// endpoint instead of the local relay. MailEndpointToken is the bearer
	// token that endpoint expects.
	MailEndpoint      string `yaml:"mail_endpoint"`
	MailEndpointToken string `yaml:"mail_endpoint_token"`

	// RefreshEvery is how often live sessions recompute date-based state.
	RefreshEvery time.Duration `yaml:"refresh_every"`
}

func DefaultConfig() Config {
	return Config{
		Port:              "3001",
		DBPath:            "./launchpad.db",
		JWTSecret:         "launchpad-dev-secret",
		MailMode:          services.MailTest,
		MailTestRecipient: "test@example.com",
		LogLevel:          "info",
		BannerTTL:         3 * time.Second,
		RefreshEvery:      time.Minute,
	}
}

// LoadConfig reads path (if set) over the defaults, then the .env file at
// envFile (if present), then environment overrides.
func LoadConfig(path, envFile string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := LoadEnv(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PORT":                &c.Port,
		"DB_PATH":             &c.DBPath,
		"JWT_SECRET":          &c.JWTSecret,
		"SMTP_HOST":           &c.SMTP.Host,
		"SMTP_PORT":           &c.SMTP.Port,
		"SMTP_USERNAME":       &c.SMTP.Username,
		"SMTP_PASSWORD":       &c.SMTP.Password,
		"SMTP_FROM":           &c.SMTP.From,
		"MAIL_TEST_RECIPIENT": &c.MailTestRecipient,
		"MAIL_ENDPOINT":       &c.MailEndpoint,
		"MAIL_ENDPOINT_TOKEN": &c.MailEndpointToken,
		"LOG_LEVEL":           &c.LogLevel,
		"STATIC_DIR":          &c.StaticDir,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("MAIL_MODE"); ok {
		c.MailMode = services.MailMode(strings.ToLower(v))
	}
	if v, ok := os.LookupEnv("BANNER_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BANNER_TTL %q: %w", v, err)
		}
		c.BannerTTL = d
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	switch c.MailMode {
	case services.MailLive:
	case services.MailTest:
		if c.MailTestRecipient == "" {
			return errors.New("mail_mode test needs mail_test_recipient")
		}
	default:
		return fmt.Errorf("unknown mail_mode %q", c.MailMode)
	}
	if c.Port == "" {
		return errors.New("port must be set")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret must be set")
	}
	if c.BannerTTL <= 0 {
		return errors.New("banner_ttl must be positive")
	}
	return nil
}

// ParseLevel parses a log level string into slog.Level.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
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

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// LoadEnv loads environment variables from a .env file. Variables already
// set in the environment win.
func LoadEnv(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue // Skip malformed lines
		}

		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}
