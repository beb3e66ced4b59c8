package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/config"
	"github.com/rocketscienceinc/tictactoe-arena/internal/matchmaker"
	"github.com/rocketscienceinc/tictactoe-arena/internal/registry"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository"
	"github.com/rocketscienceinc/tictactoe-arena/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-arena/internal/service"
	"github.com/rocketscienceinc/tictactoe-arena/transport/rest"
	"github.com/rocketscienceinc/tictactoe-arena/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	sessionRegistry := registry.New()
	gameMatchmaker := matchmaker.New(sessionRegistry, conf.Game.InvitationTTL)
	gameArchive := repository.NewGameArchive(redisStorage.Connection)

	wsServer := websocket.New(logger)
	gamePlay := service.NewGamePlay(
		logger,
		sessionRegistry,
		gameMatchmaker,
		service.NewBotService(),
		wsServer,
		gameArchive,
		conf.Game.BotDelay,
	)
	defer gamePlay.Stop()

	wsServer.SetGamePlay(gamePlay)

	go runJanitor(ctx, log, conf, sessionRegistry, gamePlay)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run WebSocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// runJanitor periodically expires unanswered invitations and drops finished
// sessions that nobody restarted.
func runJanitor(ctx context.Context, log *slog.Logger, conf *config.Config, sessionRegistry *registry.Registry, gamePlay *service.GamePlay) {
	ticker := time.NewTicker(conf.Game.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gamePlay.ExpireInvitations(ctx)

			if pruned := sessionRegistry.PruneFinished(conf.Game.RetainFinished); pruned > 0 {
				log.Info("pruned finished sessions", "count", pruned)
			}
		}
	}
}
