// Package jornet defines the leaderboard entities, their wire formats, and the
// signature that authenticates score submissions.
package jornet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultHost is the production leaderboard service.
const DefaultHost = "https://jornet.vleue.com"

// Player is an identity allowed to submit scores. Key must stay on the client:
// it is only used locally to sign submissions.
type Player struct {
	ID   uuid.UUID `json:"id"`
	Key  uuid.UUID `json:"key"`
	Name string    `json:"name"`
}

// ErrInvalidPlayer is returned by Player.Validate.
var ErrInvalidPlayer = errors.New("invalid player")

// Validate reports whether p carries a usable identity. The zero id or key
// is what decoding a response without them yields.
func (p Player) Validate() error {
	switch {
	case p.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalidPlayer)
	case p.Key == uuid.Nil:
		return fmt.Errorf("%w: missing key", ErrInvalidPlayer)
	}
	return nil
}

// Score is one leaderboard row as returned by the server.
type Score struct {
	Score     float32 `json:"score"`
	Player    string  `json:"player"`
	Meta      *string `json:"meta"`
	Timestamp string  `json:"timestamp"`
}

// PlayerInput is the body of a player creation request. A nil Name lets the
// server pick one.
type PlayerInput struct {
	Name *string `json:"name"`
}

// ScoreInput is the signed body of a score submission.
type ScoreInput struct {
	Score     float32   `json:"score"`
	Player    uuid.UUID `json:"player"`
	Meta      *string   `json:"meta"`
	Timestamp uint64    `json:"timestamp"`
	K         string    `json:"k"`
}

// PlayersURL returns the player creation endpoint on host.
func PlayersURL(host string) string {
	return strings.TrimRight(host, "/") + "/api/v1/players"
}

// ScoresURL returns the score endpoint of a leaderboard on host.
func ScoresURL(host string, leaderboard uuid.UUID) string {
	return fmt.Sprintf("%s/api/v1/scores/%s", strings.TrimRight(host, "/"), leaderboard)
}
