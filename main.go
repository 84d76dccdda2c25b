// main.go
//
// Entry point for codebreak, a two-player Bulls and Cows game.
//
// Usage:
//   codebreak host           wait for an opponent on LISTEN_ADDR
//   codebreak join <addr>    connect to a host ("host:port" or a ws:// URL)
//
// Responsibilities:
//   - Load .env and configuration, set up zerolog.
//   - Open the results ledger (SQLite when RESULTS_DB is set, else memory).
//   - Host: serve the HTTP surface and wait for the single peer.
//     Join: dial the host, signing a join token when JOIN_SECRET is set.
//   - Run one session with the terminal console until the user quits or
//     the link drops.
//
// Logs go to stderr; the game itself is played on stdin/stdout.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codebreak/internal/config"
	"github.com/robalobadob/codebreak/internal/console"
	"github.com/robalobadob/codebreak/internal/httpserver"
	"github.com/robalobadob/codebreak/internal/session"
	"github.com/robalobadob/codebreak/internal/store"
	"github.com/robalobadob/codebreak/internal/transport"
)

const usage = `usage:
  codebreak host           wait for an opponent
  codebreak join <addr>    connect to a host
`

var errUsage = errors.New("bad usage")

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Fatal().Err(err).Msg("codebreak exited")
	}
}

func setupLogging(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func run(ctx context.Context, cfg config.Config, args []string, in io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	results, closeResults, err := openResults(cfg.ResultsDB)
	if err != nil {
		return err
	}
	defer closeResults()

	opts := transport.DefaultOptions()
	opts.PingInterval = cfg.PingInterval()
	opts.ReadTimeout = cfg.ReadTimeout()
	opts.Logger = log.Logger

	switch args[0] {
	case "host":
		return host(ctx, cfg, opts, results, in, out)
	case "join":
		if len(args) != 2 {
			return errUsage
		}
		dopts := transport.DefaultDialOptions()
		dopts.Options = opts
		dopts.JoinSecret = cfg.JoinSecret
		conn, err := transport.Dial(ctx, args[1], dopts)
		if err != nil {
			return err
		}
		log.Info().Str("conn", conn.ID()).Str("addr", args[1]).Msg("connected to host")
		return play(ctx, session.Joiner, cfg, conn, results, in, out)
	default:
		return errUsage
	}
}

// openResults picks the ledger backend. The returned func closes it.
func openResults(dsn string) (store.Store, func(), error) {
	if dsn == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	db, err := store.OpenSQLite(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open results db: %w", err)
	}
	log.Info().Str("db", dsn).Msg("results ledger opened")
	return db, func() { _ = db.Close() }, nil
}

// host serves HTTP until the peer arrives, then plays. The server keeps
// running for /health and /results until the session is over.
func host(ctx context.Context, cfg config.Config, opts transport.Options, results store.Store, in io.Reader, out io.Writer) error {
	acc := transport.NewAcceptor(opts)
	srv := httpserver.New(acc, results, cfg.JoinSecret)

	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(srvCtx, cfg.ListenAddr) }()

	log.Info().Str("addr", cfg.ListenAddr).Bool("join_token", cfg.JoinSecret != "").Msg("waiting for opponent")
	fmt.Fprintf(out, "Hosting on %s. Waiting for an opponent...\n", cfg.ListenAddr)

	accepted := make(chan transport.Conn, 1)
	go func() {
		if conn, err := acc.Accept(srvCtx); err == nil {
			accepted <- conn
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case conn := <-accepted:
		log.Info().Str("conn", conn.ID()).Msg("opponent connected")
		return play(ctx, session.Host, cfg, conn, results, in, out)
	}
}

// play runs one session on conn until the user leaves or the link drops.
func play(ctx context.Context, role session.Role, cfg config.Config, conn transport.Conn, results store.Store, in io.Reader, out io.Writer) error {
	defer conn.Close()

	ui := console.New(out)
	ctl := session.New(
		session.Config{Role: role, TurnDuration: cfg.TurnSeconds},
		conn,
		ui,
		session.WithRecorder(results),
		session.WithLogger(log.Logger),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := ctl.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("session loop")
		}
	}()
	session.Attach(ctl, conn)

	err := ui.Run(runCtx, in, ctl)
	cancel()
	<-ctl.Done()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
