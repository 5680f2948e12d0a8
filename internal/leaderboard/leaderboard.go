// Package leaderboard is the client session against one remote leaderboard.
//
// A Leaderboard starts without a player. CreatePlayer or ConnectAsPlayer
// must succeed before scores can be sent; either may be called again later
// to switch identity.
//
// Hosts that cannot block on network calls use RefreshLeaderboard and call
// CheckForUpdates once per frame to pick up the result.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/jornet/internal/jornet"
	"github.com/playperu/jornet/internal/transport"
)

var (
	ErrNoPlayer       = errors.New("no current player")
	ErrCreatePlayer   = errors.New("error creating a player")
	ErrGetLeaderboard = errors.New("error getting the leaderboard")
)

// Leaderboard is a client handle for one leaderboard.
type Leaderboard struct {
	id        uuid.UUID
	key       uuid.UUID
	host      string
	transport transport.Transport
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	player *jornet.Player
	scores []jornet.Score

	refreshing atomic.Bool
	refreshed  transport.Slot[[]jornet.Score]
}

// Option configures a Leaderboard.
type Option func(*Leaderboard)

// WithHost overrides the default service host.
func WithHost(host string) Option {
	return func(l *Leaderboard) {
		if host != "" {
			l.host = host
		}
	}
}

// WithTransport sets the transport used for every request.
func WithTransport(t transport.Transport) Option {
	return func(l *Leaderboard) { l.transport = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Leaderboard) { l.logger = logger }
}

// WithClock replaces the wall clock used to timestamp submissions.
func WithClock(now func() time.Time) Option {
	return func(l *Leaderboard) { l.now = now }
}

// New returns a Leaderboard for the leaderboard id, authenticated with key.
// Without WithTransport the platform default from transport.New is used.
func New(id, key uuid.UUID, opts ...Option) *Leaderboard {
	l := &Leaderboard{
		id:     id,
		key:    key,
		host:   jornet.DefaultHost,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.transport == nil {
		l.transport = transport.New(transport.Options{Logger: l.logger})
	}
	l.logger = l.logger.With("leaderboard", id)
	return l
}

// MustParse is like New but takes the id and key as strings. It panics if
// either is not a valid UUID.
func MustParse(id, key string, opts ...Option) *Leaderboard {
	lid, err := uuid.Parse(id)
	if err != nil {
		panic(fmt.Sprintf("leaderboard: invalid leaderboard ID %q: %v", id, err))
	}
	lkey, err := uuid.Parse(key)
	if err != nil {
		panic(fmt.Sprintf("leaderboard: invalid leaderboard key: %v", err))
	}
	return New(lid, lkey, opts...)
}

// ID returns the leaderboard id.
func (l *Leaderboard) ID() uuid.UUID { return l.id }

// Host returns the service host requests are sent to.
func (l *Leaderboard) Host() string { return l.host }

// Player returns the current player, if any. Callers that want to keep the
// same identity across sessions must persist it themselves.
func (l *Leaderboard) Player() (jornet.Player, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.player == nil {
		return jornet.Player{}, false
	}
	return *l.player, true
}

// CreatePlayer registers a new player and makes it current. A nil name lets
// the server generate one. On failure the current player is unchanged.
func (l *Leaderboard) CreatePlayer(ctx context.Context, name *string) (jornet.Player, error) {
	var player jornet.Player
	err := l.transport.Post(ctx, jornet.PlayersURL(l.host), jornet.PlayerInput{Name: name}, &player)
	if err != nil {
		return jornet.Player{}, fmt.Errorf("%w: %w", ErrCreatePlayer, err)
	}
	if err := player.Validate(); err != nil {
		return jornet.Player{}, fmt.Errorf("%w: %w", ErrCreatePlayer, err)
	}

	l.mu.Lock()
	l.player = &player
	l.mu.Unlock()

	l.logger.Info("player created", "player", player.ID, "name", player.Name)
	return player, nil
}

// ConnectAsPlayer makes a previously created player current.
func (l *Leaderboard) ConnectAsPlayer(player jornet.Player) {
	l.mu.Lock()
	l.player = &player
	l.mu.Unlock()
}

// SendScore submits score for the current player and reports whether the
// server accepted it.
func (l *Leaderboard) SendScore(ctx context.Context, score float32) bool {
	return l.sendScore(ctx, score, nil)
}

// SendScoreWithMeta is SendScore with free-form metadata such as the level
// played or the victory condition.
func (l *Leaderboard) SendScoreWithMeta(ctx context.Context, score float32, meta string) bool {
	return l.sendScore(ctx, score, &meta)
}

func (l *Leaderboard) sendScore(ctx context.Context, score float32, meta *string) bool {
	player, ok := l.Player()
	if !ok {
		l.logger.Warn("score not sent", "error", ErrNoPlayer)
		return false
	}
	if err := player.Validate(); err != nil {
		l.logger.Warn("score not sent", "player", player.ID, "error", err)
		return false
	}

	input := jornet.NewScoreInput(l.now(), l.key, player, score, meta)
	if err := l.transport.Post(ctx, jornet.ScoresURL(l.host, l.id), input, nil); err != nil {
		l.logger.Warn("error sending the score", "player", player.ID, "error", err)
		return false
	}
	return true
}

// GetLeaderboard fetches the current scores in the order the server ranks
// them.
func (l *Leaderboard) GetLeaderboard(ctx context.Context) ([]jornet.Score, error) {
	var scores []jornet.Score
	if err := l.transport.Get(ctx, jornet.ScoresURL(l.host, l.id), &scores); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGetLeaderboard, err)
	}
	return scores, nil
}

// RefreshLeaderboard fetches the scores in the background. The result is
// published by the next CheckForUpdates after it arrives. It does nothing
// while a previous refresh is still pending.
func (l *Leaderboard) RefreshLeaderboard() {
	if !l.refreshing.CompareAndSwap(false, true) {
		return
	}
	accepted := l.transport.Go(func(ctx context.Context) {
		scores, err := l.GetLeaderboard(ctx)
		if err != nil {
			l.logger.Warn("leaderboard refresh failed", "error", err)
			l.refreshing.Store(false)
			return
		}
		if scores == nil {
			scores = []jornet.Score{}
		}
		l.refreshed.Put(scores)
	})
	if !accepted {
		l.logger.Warn("leaderboard refresh not scheduled", "error", transport.ErrClosed)
		l.refreshing.Store(false)
	}
}

// CheckForUpdates publishes a refreshed leaderboard if one has arrived and
// reports whether it did. It never blocks and is meant to be called once per
// host frame.
func (l *Leaderboard) CheckForUpdates() bool {
	scores, ok := l.refreshed.Take()
	if !ok {
		return false
	}

	l.mu.Lock()
	l.scores = scores
	l.mu.Unlock()

	l.refreshing.Store(false)
	return true
}

// Scores returns the leaderboard last published by CheckForUpdates.
func (l *Leaderboard) Scores() []jornet.Score {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.scores)
}

// Close releases the transport.
func (l *Leaderboard) Close() error {
	return l.transport.Close()
}
