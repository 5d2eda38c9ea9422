package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"

	"badminton-scoreboard/internal/broadcast"
	"badminton-scoreboard/internal/config"
	"badminton-scoreboard/internal/constants"
	fxmodules "badminton-scoreboard/internal/fx"
	"badminton-scoreboard/internal/middleware"
	"badminton-scoreboard/internal/rpc"
	"badminton-scoreboard/internal/server"
	"badminton-scoreboard/internal/service"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

const WebSocketPath = "/ws"

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	scoreboardServer *server.ScoreboardServer,
	matchSvc *service.MatchService,
	hub *broadcast.Hub,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()

	path, handler := rpc.NewMatchServiceHandler(scoreboardServer)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Grpc-Status", "Grpc-Message", "Connect-Protocol-Version"},
	})

	requestIDMiddleware := middleware.RequestID(logger)

	mux.Handle(path, requestIDMiddleware(c.Handler(handler)))
	mux.Handle(WebSocketPath, requestIDMiddleware(http.HandlerFunc(hub.ServeWS)))

	runCtx, cancel := context.WithCancel(context.Background())
	g, gCtx := errgroup.WithContext(runCtx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: mux,
		// match watch streams and viewer sockets end when shutdown begins
		BaseContext: func(net.Listener) context.Context { return runCtx },
	}
	srv.RegisterOnShutdown(cancel)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sub, err := matchSvc.Watch(ctx)
			if err != nil {
				return fmt.Errorf("failed to subscribe hub to matches: %w", err)
			}

			g.Go(func() error {
				defer sub.Unsubscribe()
				return hub.Run(gCtx, sub.Updates())
			})

			g.Go(func() error {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("server failed")
					shutdowner.Shutdown(fx.ExitCode(1))
					return err
				}
				return nil
			})
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancelShutdown()

			shutdownErr := srv.Shutdown(shutdownCtx)
			if err := g.Wait(); err != nil {
				logger.Warn().Err(err).Msg("background task stopped with error")
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			if shutdownErr != nil {
				logger.Error().Err(shutdownErr).Msg("server shutdown failed")
				return shutdownErr
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
