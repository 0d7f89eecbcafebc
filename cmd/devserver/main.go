package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/config"
	"github.com/zhouzirui/moodchat/internal/handler"
	"github.com/zhouzirui/moodchat/internal/handler/feed"
	"github.com/zhouzirui/moodchat/internal/logging"
	modelchat "github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/model/persona"
	"github.com/zhouzirui/moodchat/internal/service/ai"
	"github.com/zhouzirui/moodchat/internal/service/chat"
	"github.com/zhouzirui/moodchat/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Dev, cfg.Log.File)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("devserver stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	personaStore := persona.NewMemoryStore(persona.Seed())
	character, ok := personaStore.FindByID(cfg.AI.Persona)
	if !ok {
		return errors.New("unknown persona " + cfg.AI.Persona)
	}

	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("[store] opened", zap.String("driver", cfg.Store.Driver))

	replier, err := ai.New(ctx, cfg.AI, character, logger)
	if err != nil {
		// 模型不可用时降级为离线回复，不阻止启动。
		logger.Warn("[ai] provider unavailable, falling back to echo", zap.String("provider", cfg.AI.Provider), zap.Error(err))
		replier = ai.NewEcho(character)
	}
	logger.Info("[ai] replier ready", zap.String("replier", replier.Name()), zap.String("persona", character.ID))

	var chatService *chat.Service
	hub := feed.NewHub(func(ctx context.Context) modelchat.EmotionRecord {
		return chatService.CurrentEmotion(ctx)
	}, logger)
	defer hub.Close()

	chatService = chat.NewService(st, replier, character,
		chat.WithBroadcaster(hub),
		chat.WithLogger(logger),
	)

	router := handler.NewRouter(personaStore, chatService, hub, logger)
	return startServer(ctx, cfg.Server, router, hub, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, hub *feed.Hub, logger *zap.Logger) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// hijacked websocket connections are not closed by Shutdown
	srv.RegisterOnShutdown(hub.Close)

	logger.Info("moodchat dev backend listening", zap.String("addr", addr))
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
