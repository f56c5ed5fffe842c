package main

import (
	"context"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	assistant "github.com/traeworks/assistant"
	"github.com/traeworks/assistant/internal/chat"
	"github.com/traeworks/assistant/internal/engine"
	"github.com/traeworks/assistant/internal/handlers"
	"github.com/traeworks/assistant/internal/hub"
	"github.com/traeworks/assistant/internal/media"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var cfgReader io.Reader
	if cfgFile := openConfigFile(logger); cfgFile != nil {
		defer cfgFile.Close()
		cfgReader = cfgFile
	}

	cfg, err := loadConfig(cfgReader)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	st, closeStore, err := cfg.Store.newStore(ctx)
	if err != nil {
		log.Fatal(err)
	}

	eng, err := cfg.Engine.engine(ctx, logger)
	if err != nil {
		log.Fatal(err)
	}

	gateway, err := engine.NewGateway(eng, cfg.Generation, cfg.TokenBudget, logger)
	if err != nil {
		log.Fatal(err)
	}

	// Load the model in the background so the server comes up immediately;
	// generation calls fail fast until the gateway reports ready.
	go func() {
		if err := gateway.Load(context.Background()); err != nil {
			logger.Error("Model load failed", slog.String("err", err.Error()))
		}
	}()

	h := hub.New(logger)
	orchestrator := chat.NewOrchestrator(st, gateway, h, cfg.SystemPrompt, logger)

	m, err := handlers.NewMain(orchestrator, st, gateway, h, media.BasicAnalyzer{}, media.StubTranscriber{}, logger)
	if err != nil {
		log.Fatal(err)
	}

	staticFS, err := fs.Sub(assistant.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("GET /{$}", m.HandleHome)
	mux.HandleFunc("GET /health", m.HandleHealth)
	mux.HandleFunc("POST /chat", m.HandleChat)
	mux.HandleFunc("POST /upload-image", m.HandleUploadImage)
	mux.HandleFunc("POST /speech-to-text", m.HandleSpeechToText)
	mux.HandleFunc("GET /ws/{client_id}", m.HandleWS)
	mux.HandleFunc("GET /sse/events", m.HandleEvents)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := h.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown hub: %v", err)
		}
	})

	serverErrors := make(chan error, 1)

	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}

	if err := closeStore(); err != nil {
		log.Printf("Failed to close store: %v", err)
	}
}
