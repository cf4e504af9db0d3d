package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/Upendra2003/Aira-Backend/internal/assembler"
	"github.com/Upendra2003/Aira-Backend/internal/config"
	"github.com/Upendra2003/Aira-Backend/internal/httpapi"
	"github.com/Upendra2003/Aira-Backend/internal/llm"
	"github.com/Upendra2003/Aira-Backend/internal/observability"
	"github.com/Upendra2003/Aira-Backend/internal/retrieval"
	"github.com/Upendra2003/Aira-Backend/internal/session"
	"github.com/Upendra2003/Aira-Backend/internal/store"
	"github.com/Upendra2003/Aira-Backend/internal/turn"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config error")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.WithError(err).Fatal("store init failed")
	}
	defer st.Close()

	retriever, err := retrieval.New(retrieval.Config{
		VectorDir:         cfg.VectorDir,
		EmbeddingsBaseURL: cfg.EmbeddingsBaseURL,
		EmbeddingsAPIKey:  cfg.EmbeddingsAPIKey,
		EmbeddingsModel:   cfg.EmbeddingsModel,
	})
	if err != nil {
		log.WithError(err).Fatal("retriever init failed")
	}

	generator, err := llm.NewGenerator(llm.Config{
		Mode:    cfg.GeneratorMode,
		BaseURL: cfg.GroqBaseURL,
		APIKey:  cfg.GroqAPIKey,
		Model:   cfg.GroqModel,
	})
	if err != nil {
		log.WithError(err).Fatal("generator init failed")
	}

	sessions := session.NewCache(st, metrics, cfg.SessionFreshnessWindow, cfg.SessionEvictionWindow)
	asm := assembler.New(sessions, st, retriever, cfg.HistoryContextLimit, cfg.RetrievalK, cfg.RetrievalTimeout)
	pipeline := turn.NewPipeline(asm, generator, st, sessions, metrics, cfg.GenerationTimeout)

	api := httpapi.New(cfg, pipeline, st, retriever, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.WithField("addr", cfg.BindAddr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
		_ = httpServer.Close()
	}

	log.Info("shutdown complete")
}
