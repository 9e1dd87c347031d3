package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"repolens/internal/artifact"
	"repolens/internal/cache"
	"repolens/internal/cache/disk"
	"repolens/internal/cache/memory"
	"repolens/internal/config"
	"repolens/internal/fetch"
	"repolens/internal/history"
	"repolens/internal/llm"
	"repolens/internal/logging"
	"repolens/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	logging.Init(cfg.Logging)

	rc := cache.New(buildCacheStore(cfg.Cache), cfg.Cache.MaxEntries, cfg.Cache.TTL)

	provider := fetch.NewGitHub(fetch.GitHubOptions{
		Token:           cfg.GitHub.Token,
		BaseURL:         cfg.GitHub.BaseURL,
		Timeout:         cfg.GitHub.Timeout,
		MaxContentBytes: cfg.Pipeline.MaxContentBytes,
	})

	opts := pipeline.Options{
		Provider: provider,
		Cache:    rc,
		Config:   cfg.Pipeline,
	}

	if cfg.LLM.APIKey != "" {
		client, err := llm.NewGemini(context.Background(), llm.GeminiOptions{
			APIKey: cfg.LLM.APIKey,
			Model:  cfg.LLM.Model,
		})
		if err != nil {
			logrus.Warnf("llm: insight generation disabled: %v", err)
		} else {
			opts.LLM = client
			defer client.Close()
		}
	}

	hs := history.NewFromEnv(cfg.History)
	if hs != nil {
		opts.History = hs
		defer hs.Close()
	}
	as := artifact.NewFromEnv(cfg.Artifact)
	if as != nil {
		opts.Artifacts = as
	}

	coord, err := pipeline.New(opts)
	if err != nil {
		logrus.Fatalf("pipeline: %v", err)
	}

	srv := newServer(coord, hs, as)
	httpSrv := &http.Server{
		Addr:    cfg.Port,
		Handler: h2c.NewHandler(withCORS(srv), &http2.Server{}),
	}

	go func() {
		logrus.Infof("api listening on %s", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logrus.Fatalf("server forced to shutdown: %v", err)
	}
	logrus.Info("server exiting")
}

func buildCacheStore(cfg config.CacheConfig) cache.Store {
	if strings.EqualFold(strings.TrimSpace(cfg.Backend), "disk") {
		s, err := disk.New(cfg.Dir)
		if err != nil {
			logrus.Warnf("cache: disk backend unavailable, falling back to memory: %v", err)
			return memory.New()
		}
		return s
	}
	return memory.New()
}
