package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/CrowderSoup/studyboard/config"
	"github.com/CrowderSoup/studyboard/database"
	"github.com/CrowderSoup/studyboard/handlers"
	"github.com/CrowderSoup/studyboard/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := cfg.NewLogger()
		if err != nil {
			return err
		}
		log.SetLevel(logger.GetLevel())
		log.SetFormatter(logger.Formatter)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// openBackend opens the store and, when redis_url is set, layers the read cache over it.
func openBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*database.Store, database.Backend, func(), error) {
	store, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closers := []func() error{store.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.WithError(err).Warn("Error during shutdown")
			}
		}
	}

	if cfg.RedisURL == "" {
		return store, store, closeAll, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		closeAll()
		return nil, nil, nil, fmt.Errorf("invalid redis_url: %w", err)
	}
	client := redis.NewClient(opts)
	closers = append(closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis unreachable; reads will fall back to the database")
	}
	logger.WithField("ttl", cfg.CacheTTL).Info("Redis read cache enabled")
	return store, database.NewCache(store, client, cfg.CacheTTL, logger), closeAll, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	store, backend, closeBackend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend()

	hub := services.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	syncer := services.NewSynchronizer(backend, logger, cfg.SyncTimeout)
	syncer.OnStatus(func(ownerID string, st services.ScopeStatus) {
		hub.SendToOwner(ownerID, services.NewMessage(services.MessageSyncStatus, []services.ScopeStatus{st}))
	})
	workspaces := services.NewWorkspaces(backend, syncer, hub, logger)
	hub.OnLeave(func(c *services.Client) {
		workspaces.ReleaseHolder(c.OwnerID, c.ID)
	})

	router := handlers.NewRouter(handlers.Deps{
		Auth:       services.NewAuthService(cfg, logger),
		Workspaces: workspaces,
		Hub:        hub,
		Store:      store,
		Origins:    cfg.AllowedOrigins,
		StaticDir:  cfg.StaticDir,
		Log:        logger,
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      c.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("Server starting")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Graceful shutdown failed")
	}
	stopHub()
	// let in-flight writes land before the store closes
	syncer.Wait()
	return nil
}
