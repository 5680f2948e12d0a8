// Command jornet talks to a Jornet leaderboard from the shell: it creates
// players, submits scores, and prints or watches the leaderboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/jornet/internal/config"
	"github.com/playperu/jornet/internal/jornet"
	"github.com/playperu/jornet/internal/leaderboard"
	"github.com/playperu/jornet/internal/transport"
)

const usage = `usage: jornet <command> [flags]

commands:
  create-player [-name NAME]     create a player and print its credentials
  send-score -score N [-meta M]  submit a score as JORNET_PLAYER_ID
  leaderboard [-watch]           print the leaderboard`

var errScoreRejected = errors.New("score was not accepted")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return execute(ctx, cfg, args, stdout, stderr)
}

func execute(ctx context.Context, cfg *config.Config, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return errors.New("missing command")
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	lb := leaderboard.New(cfg.LeaderboardID, cfg.LeaderboardKey,
		leaderboard.WithHost(cfg.Host),
		leaderboard.WithLogger(logger),
		leaderboard.WithTransport(transport.New(transport.Options{
			Logger:  logger,
			Workers: cfg.Workers,
		})),
	)
	defer lb.Close()

	if p, ok := cfg.Player(); ok {
		lb.ConnectAsPlayer(p)
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "create-player":
		return createPlayer(ctx, lb, args, stdout)
	case "send-score":
		return sendScore(ctx, lb, args)
	case "leaderboard":
		return showLeaderboard(ctx, lb, args, stdout)
	default:
		fmt.Fprintln(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func createPlayer(ctx context.Context, lb *leaderboard.Leaderboard, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("create-player", flag.ContinueOnError)
	name := fs.String("name", "", "display name (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var namePtr *string
	if *name != "" {
		namePtr = name
	}
	player, err := lb.CreatePlayer(ctx, namePtr)
	if err != nil {
		return err
	}

	// Printed as env assignments so the identity can be reused later.
	_, err = fmt.Fprintf(stdout, "JORNET_PLAYER_ID=%s\nJORNET_PLAYER_KEY=%s\nJORNET_PLAYER_NAME=%s\n",
		player.ID, player.Key, strconv.Quote(player.Name))
	return err
}

func sendScore(ctx context.Context, lb *leaderboard.Leaderboard, args []string) error {
	fs := flag.NewFlagSet("send-score", flag.ContinueOnError)
	score := fs.Float64("score", 0, "score value")
	meta := fs.String("meta", "", "optional metadata")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var ok bool
	if *meta != "" {
		ok = lb.SendScoreWithMeta(ctx, float32(*score), *meta)
	} else {
		ok = lb.SendScore(ctx, float32(*score))
	}
	if !ok {
		return errScoreRejected
	}
	return nil
}

func showLeaderboard(ctx context.Context, lb *leaderboard.Leaderboard, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("leaderboard", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "keep refreshing until interrupted")
	interval := fs.Duration("interval", 10*time.Second, "refresh interval in watch mode")
	tick := fs.Duration("tick", 100*time.Millisecond, "frame interval in watch mode")
	updates := fs.Int("updates", 0, "stop watching after this many snapshots (0 = never)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*watch {
		scores, err := lb.GetLeaderboard(ctx)
		if err != nil {
			return err
		}
		return printScores(stdout, scores)
	}

	g, gctx := errgroup.WithContext(ctx)
	gctx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		return refreshLoop(gctx, lb, *interval)
	})
	g.Go(func() error {
		// Reaching -updates ends the watch, refresh loop included.
		defer stop()
		return frameLoop(gctx, lb, *tick, *updates, stdout)
	})
	return g.Wait()
}

// refreshLoop requests a refresh right away and then every interval.
func refreshLoop(ctx context.Context, lb *leaderboard.Leaderboard, interval time.Duration) error {
	refresh := time.NewTicker(interval)
	defer refresh.Stop()

	lb.RefreshLeaderboard()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh.C:
			lb.RefreshLeaderboard()
		}
	}
}

// frameLoop runs the poll step on every tick the way a game loop would and
// prints each snapshot it picks up.
func frameLoop(ctx context.Context, lb *leaderboard.Leaderboard, tick time.Duration, updates int, stdout io.Writer) error {
	frames := time.NewTicker(tick)
	defer frames.Stop()

	published := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-frames.C:
			if !lb.CheckForUpdates() {
				continue
			}
			if err := printScores(stdout, lb.Scores()); err != nil {
				return err
			}
			published++
			if updates > 0 && published >= updates {
				return nil
			}
		}
	}
}

func printScores(w io.Writer, scores []jornet.Score) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tMETA\tTIME")
	for i, s := range scores {
		meta := ""
		if s.Meta != nil {
			meta = *s.Meta
		}
		fmt.Fprintf(tw, "%d\t%s\t%g\t%s\t%s\n", i+1, s.Player, s.Score, meta, s.Timestamp)
	}
	return tw.Flush()
}
