package main

import (
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/randutil"
	"github.com/lox/triadsync/internal/solo"
	"github.com/lox/triadsync/internal/tui"
)

// SoloCmd plays against the local random opponent
type SoloCmd struct {
	Seed *int64 `kong:"help='Deterministic seed for deals and opponent moves (optional)'"`
}

func (c *SoloCmd) Run() error {
	clock := quartz.NewReal()
	rng := randutil.New(randutil.Seed(c.Seed, time.Now()))

	game := solo.New(rng.Int64(), clock, match.DefaultTimings())
	backend := tui.NewSoloBackend(game, rng)

	program := tea.NewProgram(tui.NewModel(backend, log.New(io.Discard)), tea.WithAltScreen())
	_, err := program.Run()
	return err
}
