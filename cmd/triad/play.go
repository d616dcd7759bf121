package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lox/triadsync/cmd/triad/shared"
	"github.com/lox/triadsync/internal/session"
	"github.com/lox/triadsync/internal/tui"
	"github.com/rs/zerolog"
)

// PlayCmd seats a human in a room
type PlayCmd struct {
	RemoteFlags `embed:""`

	Create   string `kong:"help='Create a room with this name'"`
	Join     string `kong:"help='Join the room with this id'"`
	Password string `kong:"help='Room password (protects a created room)'"`
	DebugLog string `kong:"name='debug-log',help='Write debug logs to this file'"`
}

func (c *PlayCmd) Run() error {
	if (c.Create == "") == (c.Join == "") {
		return errors.New("pass exactly one of --create or --join")
	}

	logOut := io.Discard
	debug := c.DebugLog != ""
	if debug {
		f, err := os.OpenFile(c.DebugLog, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
		if err != nil {
			return fmt.Errorf("failed to create debug log: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: logOut, NoColor: true}).
		Level(zerolog.DebugLevel).With().Timestamp().Logger()

	cfg, err := c.participantConfig()
	if err != nil {
		return err
	}

	ctx := shared.SetupSignalHandlerWithLogger(logger)
	conn, timings, err := c.connect(ctx, cfg, logOut, debug)
	if err != nil {
		return err
	}
	defer conn.Close()

	lobby := session.NewLobby(conn, actingAs(conn, cfg.ParticipantID),
		session.WithTimings(timings),
		session.WithLogger(logger),
	)

	var s *session.Session
	if c.Create != "" {
		s, err = lobby.CreateRoom(ctx, c.Create, c.Password != "", c.Password, cfg.Name)
	} else {
		s, err = lobby.JoinRoom(ctx, c.Join, c.Password, cfg.Name)
	}
	if err != nil {
		return err
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
		defer cancel()
		if err := s.Leave(leaveCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to leave room")
		}
	}()

	fmt.Printf("Room %s (share this id with your opponent)\n", s.RoomID())

	backend := tui.NewSessionBackend(ctx, s)
	defer backend.Close()

	program := tea.NewProgram(tui.NewModel(backend, shared.SetupClientLogger(logOut, debug)),
		tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
