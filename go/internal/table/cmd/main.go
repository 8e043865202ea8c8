package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/holdem/go/internal/config"
	"github.com/mcdev12/holdem/go/internal/inspect"
	"github.com/mcdev12/holdem/go/internal/mirror"
	"github.com/mcdev12/holdem/go/internal/socketio"
	"github.com/mcdev12/holdem/go/internal/table"
)

var errQuit = errors.New("quit")

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	name := flag.String("name", "", "player name (overrides POKER_PLAYER_NAME)")
	room := flag.String("room", "", "room code to join instead of creating one (overrides POKER_ROOM)")
	flag.Parse()

	cfg, err := bootstrap(os.Stderr, *configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *name != "" {
		cfg.Player.Name = *name
	}
	if *room != "" {
		cfg.Player.Room = strings.ToUpper(*room)
	}

	log.Info().
		Str("server", cfg.Server.URL).
		Str("player", cfg.Player.Name).
		Str("room", cfg.Player.Room).
		Bool("mirror", cfg.Mirror.Enabled()).
		Str("inspect", cfg.Inspect.Addr).
		Msg("starting table client")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := cfg.SocketOptions()
	opts.OnError = func(err error) {
		log.Warn().Err(err).Msg("connection error")
	}
	client, err := socketio.New(cfg.Server.URL, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create socket client")
	}

	term := newTerminal()
	observers := []table.Observer{term}

	var relay *mirror.Relay
	if cfg.Mirror.Enabled() {
		relay, err = startMirror(ctx, cfg.Mirror)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start state mirror")
		}
		observers = append(observers, relay)
	}

	session := table.NewSession(client, table.SessionConfig{
		Name:         cfg.Player.Name,
		Room:         cfg.Player.Room,
		TickInterval: cfg.Table.TickInterval,
		Observers:    observers,
	})

	var inspector *inspect.Server
	if cfg.Inspect.Addr != "" {
		var stats inspect.StatsSource
		if relay != nil {
			stats = inspect.StatsFunc(func() any { return relay.Stats() })
		}
		inspector, err = inspect.Listen(cfg.Inspect.Addr, inspect.NewHandler(session, stats))
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start state inspector")
		}
		go func() {
			if err := inspector.Serve(); err != nil {
				log.Error().Err(err).Msg("state inspector failed")
			}
		}()
	}

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- session.Run(ctx)
	}()

	area, err := pterm.DefaultArea.Start()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start terminal area")
	}
	renderDone := make(chan struct{})
	go func() {
		defer close(renderDone)
		for {
			select {
			case <-ctx.Done():
				return
			case <-term.dirty:
				area.Update(term.frame())
			}
		}
	}()
	term.signal()

	inputDone := make(chan error, 1)
	go func() {
		inputDone <- readCommands(ctx, os.Stdin, session, term)
	}()

	// Wait for interrupt signal, quit or the session ending
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-inputDone:
		if err != nil && !errors.Is(err, errQuit) {
			log.Error().Err(err).Msg("reading commands failed")
		}
	case err := <-sessionDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("table session stopped")
		}
	}

	// Graceful shutdown
	cancel()
	session.Close()
	<-renderDone
	if err := area.Stop(); err != nil {
		log.Debug().Err(err).Msg("failed to stop terminal area")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if inspector != nil {
		if err := inspector.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("state inspector shutdown failed")
		}
	}

	log.Info().Msg("table client shutdown complete")
}

// bootstrap installs the console logger before anything can log, then loads
// .env files and the config and applies the configured level.
func bootstrap(stderr io.Writer, configPath string, envFiles ...string) (*config.Config, error) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen})

	// Load .env file if it exists
	if err := config.LoadEnvFiles(envFiles...); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(cfg.Level())
	return cfg, nil
}

func startMirror(ctx context.Context, cfg config.MirrorConfig) (*mirror.Relay, error) {
	jsCfg := mirror.DefaultJetStreamConfig()
	jsCfg.URL = cfg.URL
	jsCfg.StreamName = cfg.Stream
	jsCfg.SubjectPrefix = cfg.SubjectPrefix

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pub, err := mirror.NewJetStreamPublisher(connectCtx, jsCfg)
	if err != nil {
		return nil, err
	}

	relay := mirror.NewRelay(pub, mirror.RelayConfig{IncludePrivate: cfg.IncludePrivate})
	go func() {
		relay.Run(ctx)
		if err := pub.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close mirror publisher")
		}
	}()
	return relay, nil
}

// readCommands turns input lines into session requests until quit or EOF.
func readCommands(ctx context.Context, r io.Reader, session *table.Session, term *terminal) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		err := runCommand(ctx, session, line)
		switch {
		case errors.Is(err, errQuit):
			return err
		case err != nil:
			term.OnWarning(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	return errQuit
}

func runCommand(ctx context.Context, session *table.Session, line string) error {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "start":
		return session.StartHand(reqCtx)
	case "leave":
		return session.Leave(reqCtx)
	}

	kind, err := table.ParseActionKind(cmd)
	if err != nil {
		return err
	}
	amount := ""
	if len(fields) > 1 {
		amount = fields[1]
	}
	return session.RequestAction(reqCtx, kind, amount)
}
