// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Mail     MailConfig
	Dispatch DispatchConfig
	Closing  ClosingConfig
	Admin    AdminConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host         string
	Port         int
	BaseURL      string
	MaxBodySize  int // in MB
	AllowOrigins []string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	Driver string // sqlite, postgres
	DSN    string
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	Timeout  time.Duration
}

// MailConfig describes the voting code email.
type MailConfig struct {
	FromName       string
	FromAddress    string
	SupportAddress string
	VotingURL      string // voting page, the code is appended as ?code=
	Locale         string // hy, en
}

type DispatchConfig struct {
	BatchSize    int
	RateLimit    time.Duration // pause after every send
	Interval     time.Duration // safety-net run
	Cooldown     time.Duration // pause before draining the next full batch
	StartupDelay time.Duration
}

type ClosingConfig struct {
	Interval     time.Duration
	StartupDelay time.Duration
}

type AdminConfig struct {
	TokenHash string // bcrypt hash of the admin bearer token, empty disables /api/admin
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:         cmd.String("host"),
			Port:         int(cmd.Int("port")),
			BaseURL:      cmd.String("base-url"),
			MaxBodySize:  int(cmd.Int("max-body-size")),
			AllowOrigins: cmd.StringSlice("cors-allow-origins"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			Driver: cmd.String("database-driver"),
			DSN:    cmd.String("database-dsn"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			TLS:      cmd.Bool("smtp-tls"),
			Timeout:  cmd.Duration("smtp-timeout"),
		},
		Mail: MailConfig{
			FromName:       cmd.String("mail-from-name"),
			FromAddress:    cmd.String("mail-from-address"),
			SupportAddress: cmd.String("mail-support-address"),
			VotingURL:      cmd.String("mail-voting-url"),
			Locale:         cmd.String("mail-locale"),
		},
		Dispatch: DispatchConfig{
			BatchSize:    int(cmd.Int("dispatch-batch-size")),
			RateLimit:    cmd.Duration("dispatch-rate-limit"),
			Interval:     cmd.Duration("dispatch-interval"),
			Cooldown:     cmd.Duration("dispatch-cooldown"),
			StartupDelay: cmd.Duration("startup-delay"),
		},
		Closing: ClosingConfig{
			Interval:     cmd.Duration("closing-interval"),
			StartupDelay: cmd.Duration("startup-delay"),
		},
		Admin: AdminConfig{
			TokenHash: cmd.String("admin-token-hash"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	applyMailDefaults(cfg)

	return cfg
}

// applyMailDefaults fills sender and link settings from related values.
func applyMailDefaults(cfg *Config) {
	if cfg.Mail.FromAddress == "" {
		cfg.Mail.FromAddress = cfg.SMTP.Username
	}
	if cfg.Mail.VotingURL == "" {
		cfg.Mail.VotingURL = cfg.Server.BaseURL
	}
	cfg.Mail.VotingURL = strings.TrimSuffix(cfg.Mail.VotingURL, "/")
}

func buildBaseURL(cfg *Config) string {
	if cfg.Server.Port == 80 {
		return fmt.Sprintf("http://%s", cfg.Server.Host)
	}
	return fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
}

// Validate checks the settings needed to serve and dispatch.
func (c *Config) Validate() error {
	if c.Dispatch.BatchSize < 1 {
		return fmt.Errorf("dispatch batch size must be positive, got %d", c.Dispatch.BatchSize)
	}
	if c.Dispatch.Interval <= 0 || c.Closing.Interval <= 0 {
		return fmt.Errorf("dispatch and closing intervals must be positive")
	}
	if c.Dispatch.RateLimit < 0 || c.Dispatch.Cooldown < 0 || c.Dispatch.StartupDelay < 0 {
		return fmt.Errorf("dispatch delays must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   3000,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL of the API",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "cors-allow-origins",
			Value:   []string{"*"},
			Usage:   "Origins allowed to call the API",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CORS_ALLOW_ORIGINS"), toml.TOML("server.cors_allow_origins", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-driver",
			Value:   "sqlite",
			Usage:   "Database driver (sqlite, postgres)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DRIVER"), toml.TOML("database.driver", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/votemail.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   465,
			Usage:   "SMTP server port (465 uses implicit TLS)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USER"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASS"), toml.TOML("smtp.password", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		&cli.DurationFlag{
			Name:    "smtp-timeout",
			Value:   30 * time.Second,
			Usage:   "SMTP dial and send timeout",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TIMEOUT"), toml.TOML("smtp.timeout", configFile)),
		},
		// Mail flags
		&cli.StringFlag{
			Name:    "mail-from-name",
			Value:   "ՄԵՄ թիմ",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_FROM_NAME"), toml.TOML("mail.from_name", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-from-address",
			Usage:   "Sender address (defaults to the SMTP username)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_FROM_ADDRESS"), toml.TOML("mail.from_address", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-support-address",
			Value:   "it@mem.team",
			Usage:   "Support address shown in the email footer",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_SUPPORT_ADDRESS"), toml.TOML("mail.support_address", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-voting-url",
			Usage:   "Voting page URL linked from the email (defaults to base-url)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("VOTING_URL"), toml.TOML("mail.voting_url", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-locale",
			Value:   "hy",
			Usage:   "Email language (hy, en)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_LOCALE"), toml.TOML("mail.locale", configFile)),
		},
		// Dispatch flags
		&cli.IntFlag{
			Name:    "dispatch-batch-size",
			Value:   50,
			Usage:   "Emails sent per dispatch cycle",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISPATCH_BATCH_SIZE"), toml.TOML("dispatch.batch_size", configFile)),
		},
		&cli.DurationFlag{
			Name:    "dispatch-rate-limit",
			Value:   500 * time.Millisecond,
			Usage:   "Pause after each email",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISPATCH_RATE_LIMIT"), toml.TOML("dispatch.rate_limit", configFile)),
		},
		&cli.DurationFlag{
			Name:    "dispatch-interval",
			Value:   time.Hour,
			Usage:   "Interval of the periodic dispatch run",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISPATCH_INTERVAL"), toml.TOML("dispatch.interval", configFile)),
		},
		&cli.DurationFlag{
			Name:    "dispatch-cooldown",
			Value:   time.Second,
			Usage:   "Pause before the next cycle after a full batch",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DISPATCH_COOLDOWN"), toml.TOML("dispatch.cooldown", configFile)),
		},
		&cli.DurationFlag{
			Name:    "closing-interval",
			Value:   time.Minute,
			Usage:   "Interval of the voting closing check",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CLOSING_INTERVAL"), toml.TOML("closing.interval", configFile)),
		},
		&cli.DurationFlag{
			Name:    "startup-delay",
			Value:   2 * time.Second,
			Usage:   "Delay before the first dispatch and closing runs",
			Sources: cli.NewValueSourceChain(cli.EnvVar("STARTUP_DELAY"), toml.TOML("dispatch.startup_delay", configFile)),
		},
		// Admin flags
		&cli.StringFlag{
			Name:    "admin-token-hash",
			Usage:   "bcrypt hash of the admin API token (see admin hash-token)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ADMIN_TOKEN_HASH"), toml.TOML("admin.token_hash", configFile)),
		},
	}
}
