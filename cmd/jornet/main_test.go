package main

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/jornet/internal/config"
	"github.com/playperu/jornet/internal/jornettest"
)

func testConfig(srv *jornettest.Server, id, key uuid.UUID) *config.Config {
	return &config.Config{
		LeaderboardID:  id,
		LeaderboardKey: key,
		Host:           srv.URL,
		Workers:        2,
	}
}

// parseCredentials reads the env assignments printed by create-player.
func parseCredentials(t *testing.T, out string) map[string]string {
	t.Helper()
	vars := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			t.Fatalf("unexpected output line %q", line)
		}
		vars[k] = v
	}
	return vars
}

func TestCommands(t *testing.T) {
	srv := jornettest.NewServer(t)
	id, key := srv.NewLeaderboard()
	cfg := testConfig(srv, id, key)
	ctx := context.Background()

	var out, errOut bytes.Buffer
	if err := execute(ctx, cfg, []string{"create-player", "-name", "Ada Lovelace"}, &out, &errOut); err != nil {
		t.Fatalf("create-player: %v\n%s", err, errOut.String())
	}
	vars := parseCredentials(t, out.String())
	name, err := strconv.Unquote(vars["JORNET_PLAYER_NAME"])
	if err != nil || name != "Ada Lovelace" {
		t.Fatalf("name = %q (%v), want Ada Lovelace", vars["JORNET_PLAYER_NAME"], err)
	}

	// Without a configured player the score is refused.
	if err := execute(ctx, cfg, []string{"send-score", "-score", "42"}, &out, &errOut); !errors.Is(err, errScoreRejected) {
		t.Fatalf("send-score without player: err = %v, want errScoreRejected", err)
	}

	cfg.PlayerID = uuid.MustParse(vars["JORNET_PLAYER_ID"])
	cfg.PlayerKey = uuid.MustParse(vars["JORNET_PLAYER_KEY"])
	cfg.PlayerName = name

	if err := execute(ctx, cfg, []string{"send-score", "-score", "42", "-meta", "hard"}, &out, &errOut); err != nil {
		t.Fatalf("send-score: %v\n%s", err, errOut.String())
	}

	out.Reset()
	if err := execute(ctx, cfg, []string{"leaderboard"}, &out, &errOut); err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	board := out.String()
	if !strings.Contains(board, "RANK") || !strings.Contains(board, "Ada Lovelace") || !strings.Contains(board, "hard") {
		t.Fatalf("unexpected leaderboard output:\n%s", board)
	}
}

func TestWatchPublishesSnapshot(t *testing.T) {
	srv := jornettest.NewServer(t)
	id, key := srv.NewLeaderboard()
	cfg := testConfig(srv, id, key)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out, errOut bytes.Buffer
	args := []string{"leaderboard", "-watch", "-tick", "5ms", "-interval", "1s", "-updates", "1"}
	if err := execute(ctx, cfg, args, &out, &errOut); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("watch did not publish a snapshot before the deadline")
	}
	if !strings.HasPrefix(out.String(), "RANK") {
		t.Fatalf("expected table header, got %q", out.String())
	}
}

func TestExecuteUsage(t *testing.T) {
	srv := jornettest.NewServer(t)
	id, key := srv.NewLeaderboard()
	cfg := testConfig(srv, id, key)

	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"unknown command", []string{"dance"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			if err := execute(context.Background(), cfg, tt.args, &out, &errOut); err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(errOut.String(), "usage: jornet") {
				t.Fatalf("expected usage on stderr, got %q", errOut.String())
			}
		})
	}
}

func TestLeaderboardUnknown(t *testing.T) {
	srv := jornettest.NewServer(t)
	cfg := testConfig(srv, uuid.New(), uuid.New())

	var out, errOut bytes.Buffer
	if err := execute(context.Background(), cfg, []string{"leaderboard"}, &out, &errOut); err == nil {
		t.Fatal("expected error for unknown leaderboard")
	}
}

func TestWatchKeepsRefreshing(t *testing.T) {
	srv := jornettest.NewServer(t)
	id, key := srv.NewLeaderboard()
	cfg := testConfig(srv, id, key)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out, errOut bytes.Buffer
	args := []string{"leaderboard", "-watch", "-tick", "5ms", "-interval", "20ms", "-updates", "2"}
	if err := execute(ctx, cfg, args, &out, &errOut); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("watch did not publish two snapshots before the deadline")
	}
	if got := strings.Count(out.String(), "RANK"); got != 2 {
		t.Fatalf("published %d snapshots, want 2:\n%s", got, out.String())
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	srv := jornettest.NewServer(t)
	id, key := srv.NewLeaderboard()
	cfg := testConfig(srv, id, key)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var out, errOut bytes.Buffer
	args := []string{"leaderboard", "-watch", "-tick", "5ms", "-interval", "10ms"}
	done := make(chan error, 1)
	go func() { done <- execute(ctx, cfg, args, &out, &errOut) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}
