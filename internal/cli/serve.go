package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pdfchat/internal/api"
	"pdfchat/internal/config"
	"pdfchat/internal/extractor"
	"pdfchat/internal/redis"
	"pdfchat/internal/service/answer"
	"pdfchat/internal/service/docqa"
	"pdfchat/internal/service/ledger"
	"pdfchat/internal/session"
	"pdfchat/internal/storage"
	"pdfchat/internal/worker"
)

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	basic := cfg.BasicConfig

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	files := ledger.New(db, basic.FileTTL())
	if basic.FileTTL() > 0 {
		files.StartCleaner(ctx, time.Duration(basic.CleanIntervalMinutes)*time.Minute)
	}

	ex, err := extractor.New(ctx, extractor.Options{
		UploadDir:     basic.UploadDir,
		StaticDir:     basic.StaticDir,
		ExtractImages: basic.ExtractImages,
		Recorder:      files,
	})
	if err != nil {
		return fmt.Errorf("init extractor: %w", err)
	}

	store, closeStore, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}

	dispatcher := worker.NewDispatcher(worker.Config{
		MinWorkers:  basic.MinWorkers,
		MaxWorkers:  basic.MaxWorkers,
		QueueSize:   basic.QueueSize,
		IdleTimeout: time.Duration(basic.WorkerIdleMinutes) * time.Minute,
	})
	defer dispatcher.Close()

	svc := docqa.NewService(ex, store, generator, dispatcher, docqa.Options{
		ExtractTimeout:  basic.ExtractTimeout(),
		GenerateTimeout: basic.GenerateTimeout(),
		Validate:        extractor.Validate,
	})
	sessions, err := session.NewManager(basic.SessionSecret, basic.SessionTTL())
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}
	handler := api.NewHandler(svc, sessions, api.Options{
		StaticDir:      basic.StaticDir,
		MaxUploadBytes: basic.MaxUploadBytes(),
		Files:          files,
		Jobs:           dispatcher,
	})

	httpServer := &http.Server{
		Addr:              basic.ServerAddress,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown server: %v", err)
		}
	}()

	log.Printf("pdfchat listening on %s (generator: %s, sessions: %s)", basic.ServerAddress, cfg.Generator.Strategy, basic.SessionBackend)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

func newSessionStore(cfg *config.Config) (session.Store, func(), error) {
	switch strings.ToLower(cfg.BasicConfig.SessionBackend) {
	case "redis":
		rdb, err := redis.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis client: %w", err)
		}
		return session.NewRedisStore(rdb, cfg.BasicConfig.SessionTTL()), func() { rdb.Close() }, nil
	default:
		return session.NewMemoryStore(), func() {}, nil
	}
}

func newGenerator(ctx context.Context, cfg *config.Config) (answer.Generator, error) {
	switch strings.ToLower(cfg.Generator.Strategy) {
	case "local":
		return answer.NewLocalGenerator(cfg.Local, nil)
	default:
		chatModel, err := answer.NewChatModel(ctx, cfg.Generator)
		if err != nil {
			return nil, err
		}
		return answer.NewRemoteGenerator(chatModel), nil
	}
}
