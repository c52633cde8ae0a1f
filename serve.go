package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/CrowderSoup/launchpad/database"
	"github.com/CrowderSoup/launchpad/handlers"
	"github.com/CrowderSoup/launchpad/services"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API and live session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(flags.configPath, flags.envFile)
			if err != nil {
				return err
			}
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, newLogger(cfg.LogLevel))
		},
	}
	cmd.Flags().StringP("port", "p", "", "listen port (overrides config)")
	return cmd
}

// app is the wired object graph shared by serve and the CLI commands.
type app struct {
	projects *services.ProjectStore
	relay    *services.MailRelay
	mailer   services.Mailer
	notifier *services.Dispatcher
	close    func() error
}

func newApp(cfg Config, logger *slog.Logger) (*app, error) {
	db, err := database.InitDB(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	relay := services.NewMailRelay(cfg.SMTP, cfg.MailMode, cfg.MailTestRecipient, logger)
	var mailer services.Mailer = relay
	if cfg.MailEndpoint != "" {
		mailer = services.NewHTTPMailer(cfg.MailEndpoint, nil).WithBearer(cfg.MailEndpointToken)
	}

	return &app{
		projects: services.NewProjectStore(database.NewDocumentStore(db, logger), logger),
		relay:    relay,
		mailer:   mailer,
		notifier: services.NewDispatcher(mailer, logger),
		close:    db.Close,
	}, nil
}

func runServe(ctx context.Context, cfg Config, logger *slog.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	authService := services.NewAuthService(cfg.JWTSecret, a.mailer, logger)

	hub := services.NewHub(cfg.RefreshEvery, logger)
	go hub.Run(ctx)

	router := handlers.NewRouter(handlers.Routes{
		Auth:      handlers.NewAuthHandler(authService, logger),
		Projects:  handlers.NewProjectHandler(a.projects, a.notifier, hub, logger),
		Live:      handlers.NewLiveHandler(ctx, a.projects, a.notifier, hub, cfg.BannerTTL, logger),
		Mail:      handlers.NewMailHandler(a.relay, logger),
		Guard:     handlers.NewAuthMiddleware(authService),
		StaticDir: cfg.StaticDir,
	})

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // In production, change to your domain
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
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
		logger.Info("server starting", slog.String("port", cfg.Port), slog.String("mail_mode", string(cfg.MailMode)))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
