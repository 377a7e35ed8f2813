// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{
			name:     "default port hidden",
			cfg:      &Config{Server: ServerConfig{Host: "localhost", Port: 80}},
			expected: "http://localhost",
		},
		{
			name:     "custom port",
			cfg:      &Config{Server: ServerConfig{Host: "localhost", Port: 3000}},
			expected: "http://localhost:3000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildBaseURL(tt.cfg))
		})
	}
}

func TestApplyMailDefaults(t *testing.T) {
	t.Run("applies defaults when empty", func(t *testing.T) {
		cfg := &Config{
			Server: ServerConfig{BaseURL: "https://vote.example.com"},
			SMTP:   SMTPConfig{Username: "mailer@example.com"},
		}

		applyMailDefaults(cfg)

		assert.Equal(t, "mailer@example.com", cfg.Mail.FromAddress)
		assert.Equal(t, "https://vote.example.com", cfg.Mail.VotingURL)
	})

	t.Run("does not override existing values", func(t *testing.T) {
		cfg := &Config{
			Server: ServerConfig{BaseURL: "https://api.example.com"},
			SMTP:   SMTPConfig{Username: "mailer@example.com"},
			Mail: MailConfig{
				FromAddress: "vote@example.com",
				VotingURL:   "https://vote.example.com/",
			},
		}

		applyMailDefaults(cfg)

		assert.Equal(t, "vote@example.com", cfg.Mail.FromAddress)
		assert.Equal(t, "https://vote.example.com", cfg.Mail.VotingURL)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Log:      LogConfig{Format: "text"},
			Dispatch: DispatchConfig{BatchSize: 50, RateLimit: time.Millisecond, Interval: time.Hour, Cooldown: time.Second},
			Closing:  ClosingConfig{Interval: time.Minute},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.Dispatch.BatchSize = 0 }},
		{"zero dispatch interval", func(c *Config) { c.Dispatch.Interval = 0 }},
		{"zero closing interval", func(c *Config) { c.Closing.Interval = 0 }},
		{"negative rate limit", func(c *Config) { c.Dispatch.RateLimit = -time.Second }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestFlags(t *testing.T) {
	flags := Flags()

	assert.NotEmpty(t, flags)

	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	for _, name := range []string{
		"host", "port", "log-level", "database-driver", "database-dsn",
		"smtp-host", "mail-voting-url", "mail-locale", "dispatch-batch-size",
		"dispatch-rate-limit", "closing-interval", "admin-token-hash",
	} {
		assert.True(t, flagNames[name], "should have %s flag", name)
	}
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 3000, cfg.Server.Port)
			assert.Equal(t, "http://localhost:3000", cfg.Server.BaseURL)
			assert.Equal(t, "sqlite", cfg.Database.Driver)
			assert.Equal(t, "./data/votemail.db", cfg.Database.DSN)
			assert.Equal(t, 465, cfg.SMTP.Port)
			assert.True(t, cfg.SMTP.TLS)
			assert.Equal(t, "hy", cfg.Mail.Locale)
			assert.Equal(t, "http://localhost:3000", cfg.Mail.VotingURL)
			assert.Equal(t, 50, cfg.Dispatch.BatchSize)
			assert.Equal(t, 500*time.Millisecond, cfg.Dispatch.RateLimit)
			assert.Equal(t, time.Hour, cfg.Dispatch.Interval)
			assert.Equal(t, time.Second, cfg.Dispatch.Cooldown)
			assert.Equal(t, 2*time.Second, cfg.Dispatch.StartupDelay)
			assert.Equal(t, time.Minute, cfg.Closing.Interval)
			assert.Empty(t, cfg.Admin.TokenHash)
			assert.NoError(t, cfg.Validate())
			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 9000, cfg.Server.Port)
			assert.Equal(t, "postgres", cfg.Database.Driver)
			assert.Equal(t, "postgres://localhost/votemail", cfg.Database.DSN)
			assert.Equal(t, "https://vote.example.com", cfg.Mail.VotingURL)
			assert.Equal(t, 10, cfg.Dispatch.BatchSize)
			assert.Equal(t, 2*time.Second, cfg.Dispatch.RateLimit)
			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--port", "9000",
		"--database-driver", "postgres",
		"--database-dsn", "postgres://localhost/votemail",
		"--mail-voting-url", "https://vote.example.com",
		"--dispatch-batch-size", "10",
		"--dispatch-rate-limit", "2s",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
