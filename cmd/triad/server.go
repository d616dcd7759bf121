package main

import (
	"fmt"

	"github.com/lox/triadsync/cmd/triad/shared"
	"github.com/lox/triadsync/internal/server"
)

// ServerCmd runs the store server
type ServerCmd struct {
	Config string `kong:"default='triad.hcl',help='HCL config file (defaults apply when missing)'"`
	Addr   string `kong:"help='Listen address, overrides the config file'"`
	Debug  bool   `kong:"help='Enable debug logging'"`
	JSON   bool   `kong:"help='Log structured JSON instead of console output'"`
}

func (c *ServerCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)
	if c.JSON {
		logger = shared.SetupStructuredLogger(c.Debug)
	}

	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", c.Config, err)
	}
	if !c.Debug {
		if logger, err = shared.WithLevel(logger, cfg.Server.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
	}

	addr := cfg.Address()
	if c.Addr != "" {
		addr = c.Addr
	}

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	backend, closeBackend, err := cfg.OpenBackend(ctx)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	timings := cfg.MatchTimings()
	logger.Info().
		Str("address", addr).
		Str("store", cfg.Store.Backend).
		Dur("countdown", timings.Countdown).
		Dur("round_end", timings.RoundEnd).
		Dur("empty_grace", timings.EmptyGrace).
		Msg("Starting triad store server")

	opts := []server.Option{server.WithTimings(timings)}
	if v := cfg.Validator(); v != nil {
		logger.Info().Str("url", cfg.Auth.URL).Bool("jwt", cfg.Auth.JWTSecret != "").Bool("fail_open", cfg.Auth.FailOpen).Msg("Store connections require a token")
		opts = append(opts, server.WithAuth(v, cfg.Auth.FailOpen))
	}
	if secret := cfg.AdminSecret(); secret != "" {
		logger.Info().Msg("Admin room deletion enabled")
		opts = append(opts, server.WithAdminSecret(secret))
	}

	s := server.NewServer(logger, backend, opts...)
	return s.Serve(ctx, addr)
}
