package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lox/triadsync/cmd/triad/shared"
	"github.com/lox/triadsync/internal/client"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/server"
)

// RemoteFlags are shared by commands that talk to a store server. Unset
// values come from TRIAD_* environment variables, optionally loaded from an
// .env file.
type RemoteFlags struct {
	Server  string        `kong:"help='Store server URL (default $TRIAD_SERVER or ws://localhost:8080/ws)'"`
	Name    string        `kong:"help='Display name (default $TRIAD_NAME)'"`
	EnvFile string        `kong:"name='env-file',default='.env',help='Optional .env file'"`
	Wait    time.Duration `kong:"default='10s',help='How long to wait for the server to become healthy'"`
}

// participantConfig merges flags over the environment.
func (f RemoteFlags) participantConfig() (*client.Config, error) {
	if err := client.LoadEnv(f.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := client.FromEnv()
	if err != nil {
		return nil, err
	}
	if f.Server != "" {
		cfg.ServerURL = f.Server
	}
	if f.Name != "" {
		cfg.Name = f.Name
	}
	return cfg, nil
}

// connect waits for the server, fetches its timings and opens a store
// connection.
func (f RemoteFlags) connect(ctx context.Context, cfg *client.Config, logOut io.Writer, debug bool) (*client.Client, match.Timings, error) {
	waitCtx, cancel := context.WithTimeout(ctx, f.Wait)
	defer cancel()
	if err := server.WaitForHealthy(waitCtx, cfg.ServerURL); err != nil {
		return nil, match.Timings{}, fmt.Errorf("server %s not healthy: %w", cfg.ServerURL, err)
	}

	timings, err := client.FetchTimings(ctx, cfg.ServerURL)
	if err != nil {
		return nil, match.Timings{}, err
	}

	conn, err := client.Dial(ctx, cfg.ServerURL, shared.SetupClientLogger(logOut, debug), client.WithToken(cfg.Token))
	if err != nil {
		return nil, match.Timings{}, err
	}
	return conn, timings, nil
}

// actingAs picks the participant id to sit in rooms as: the one the server
// authenticated the connection as, else fallback.
func actingAs(conn *client.Client, fallback string) string {
	if id := conn.ParticipantID(); id != "" {
		return id
	}
	return fallback
}
