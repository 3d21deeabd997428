package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	ideagen "github.com/MegaGrindStone/idea-generator"
	"github.com/MegaGrindStone/idea-generator/internal/auth"
	"github.com/MegaGrindStone/idea-generator/internal/handlers"
	"github.com/MegaGrindStone/idea-generator/internal/markdown"
	"github.com/MegaGrindStone/idea-generator/internal/services"
	"gopkg.in/yaml.v3"
)

const (
	configEnv = "IDEAGEN_CONFIG"

	defaultSystemPrompt = "You are a creative startup advisor. Answer in Markdown."
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		fatal(slog.Default(), "Error getting user config dir", err)
	}
	appDir := filepath.Join(cfgDir, "ideagen")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		fatal(slog.Default(), "Error creating config directory", err)
	}

	cfgFilePath := os.Getenv(configEnv)
	if cfgFilePath == "" {
		cfgFilePath = filepath.Join(appDir, "config.yaml")
	}
	cfg, err := loadConfig(cfgFilePath)
	if err != nil {
		fatal(slog.Default(), "Error loading config file", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel()}))

	generator, err := cfg.LLM.generator(defaultSystemPrompt, logger)
	if err != nil {
		fatal(logger, "Error creating generator", err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(appDir, "store.db")
	}
	// The server only reads users, so ideactl can update them while it runs.
	users, err := services.NewBoltReader(dbPath)
	if err != nil {
		fatal(logger, "Error opening store", err)
	}

	identity := auth.NewIdentity(auth.NewIssuer([]byte(cfg.Secret)), users, auth.Options{
		SessionTTL: cfg.Session.TTL,
		TokenTTL:   cfg.Session.TokenTTL,
	}, logger)
	source := services.NewEventSource(cfg.APIURL, cfg.streamOptions(), logger)

	m, err := handlers.NewMain(identity, generator, source, markdown.NewRenderer(logger), handlers.Config{
		IdeaPrompt: cfg.IdeaPrompt,
		PaywallURL: cfg.PaywallURL,
	}, logger)
	if err != nil {
		fatal(logger, "Error creating handlers", err)
	}

	// Serve static files
	staticFS, err := fs.Sub(ideagen.StaticFS, "static")
	if err != nil {
		fatal(logger, "Error opening static files", err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/sign-in", m.HandleSignIn)
	mux.HandleFunc("/sign-out", m.HandleSignOut)
	mux.HandleFunc("/product", m.HandleProduct)
	mux.HandleFunc("/sse/idea", m.HandleIdeaSSE)
	mux.HandleFunc("/api", m.HandleAPI)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse streams", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("apiURL", cfg.APIURL))
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}

func loadConfig(path string) (config, error) {
	cfgFile, err := os.Open(path)
	if err != nil {
		return config{}, err
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.String("err", err.Error()))
	os.Exit(1)
}
