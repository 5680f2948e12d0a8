// Package config loads the settings of the jornet command from the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"

	"github.com/playperu/jornet/internal/jornet"
)

type Config struct {
	LeaderboardID  uuid.UUID  `env:"JORNET_LEADERBOARD_ID,required"`
	LeaderboardKey uuid.UUID  `env:"JORNET_LEADERBOARD_KEY,required"`
	Host           string     `env:"JORNET_HOST" envDefault:"https://jornet.vleue.com"`
	Workers        int        `env:"JORNET_WORKERS" envDefault:"4"`
	LogLevel       slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Returning player, as printed by create-player.
	PlayerID   uuid.UUID `env:"JORNET_PLAYER_ID"`
	PlayerKey  uuid.UUID `env:"JORNET_PLAYER_KEY"`
	PlayerName string    `env:"JORNET_PLAYER_NAME"`
}

var ErrIncompletePlayer = errors.New("JORNET_PLAYER_ID and JORNET_PLAYER_KEY must be set together")

func Load() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.LeaderboardID == uuid.Nil || cfg.LeaderboardKey == uuid.Nil {
		return nil, errors.New("parsing environment: leaderboard id and key must not be the nil UUID")
	}
	if (cfg.PlayerID == uuid.Nil) != (cfg.PlayerKey == uuid.Nil) {
		return nil, ErrIncompletePlayer
	}
	return &cfg, nil
}

// Player returns the returning player configured in the environment.
func (c *Config) Player() (jornet.Player, bool) {
	if c.PlayerID == uuid.Nil {
		return jornet.Player{}, false
	}
	return jornet.Player{ID: c.PlayerID, Key: c.PlayerKey, Name: c.PlayerName}, true
}
