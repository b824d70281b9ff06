package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nbirus/draw-with-friends-api/internal/game"
	"github.com/nbirus/draw-with-friends-api/internal/ws"
)

const releaseVersion = "0.1.0"

func main() {
	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func run(ctx context.Context, cfg *Config) error {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log := zerolog.New(output).With().Timestamp().Logger()
	if cfg.verbose {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	var words game.WordProvider
	if cfg.wordsFile != "" {
		list, err := game.LoadWordFile(cfg.wordsFile)
		if err != nil {
			return err
		}
		words = list
	} else {
		words = game.NewWordList(nil)
	}

	timers := game.NewTimerService(nil)
	hub := ws.NewHub(log)
	reg := game.NewRegistry(timers, hub, log)
	eng := game.NewEngine(reg, words, timers, hub, log)
	reg.SetGames(eng)
	hub.Bind(reg, eng)

	router := ws.NewRouter(hub, ws.RouterConfig{
		AllowedOrigins: cfg.origins,
		PublicURL:      cfg.publicURL,
	})

	srv := &http.Server{
		Addr:    cfg.addr(),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	reg.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
