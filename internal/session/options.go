package session

import (
	"github.com/coder/quartz"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/roomid"
	"github.com/rs/zerolog"
)

type options struct {
	clock   quartz.Clock
	timings match.Timings
	logger  zerolog.Logger
	newID   func() string
}

// Option configures a Lobby and the sessions it opens.
type Option func(*options)

// WithClock sets the clock used for timestamps and deadline timers.
func WithClock(c quartz.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithTimings overrides the countdown, round-end and grace durations.
func WithTimings(t match.Timings) Option {
	return func(o *options) { o.timings = t }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRoomIDs replaces the room id generator.
func WithRoomIDs(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:   quartz.NewReal(),
		timings: match.DefaultTimings(),
		logger:  zerolog.Nop(),
		newID:   roomid.New,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
