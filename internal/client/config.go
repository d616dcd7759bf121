package client

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Environment variables read by remote participants
const (
	// EnvServer is the store server URL
	EnvServer = "TRIAD_SERVER"

	// EnvName is the display name shown to the opponent
	EnvName = "TRIAD_NAME"

	// EnvSeed seeds the bot's move choices for reproducible runs
	EnvSeed = "TRIAD_SEED"

	// EnvToken is presented to servers that require authentication
	EnvToken = "TRIAD_TOKEN"

	// EnvParticipantID pins the participant id, letting a restarted
	// process reclaim its seat
	EnvParticipantID = "TRIAD_PARTICIPANT_ID"
)

// DefaultServer is used when EnvServer is unset.
const DefaultServer = "ws://localhost:8080/ws"

// Config holds participant configuration parsed from the environment.
type Config struct {
	ServerURL     string
	Name          string
	ParticipantID string
	Token         string
	// Seed is nil when EnvSeed is unset
	Seed *int64
}

// LoadEnv reads .env style files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv parses configuration from environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ServerURL:     os.Getenv(EnvServer),
		Name:          os.Getenv(EnvName),
		ParticipantID: os.Getenv(EnvParticipantID),
		Token:         os.Getenv(EnvToken),
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServer
	}
	if cfg.ParticipantID == "" {
		cfg.ParticipantID = uuid.NewString()
	}
	if cfg.Name == "" {
		cfg.Name = "player-" + cfg.ParticipantID[:8]
	}

	if seedStr := os.Getenv(EnvSeed); seedStr != "" {
		seed, err := strconv.ParseInt(seedStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value: %w", EnvSeed, err)
		}
		cfg.Seed = &seed
	}
	return cfg, nil
}
