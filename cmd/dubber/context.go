package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"dubber/internal/api"
	"dubber/internal/config"
	"dubber/internal/estimate"
	"dubber/internal/jobstore"
	"dubber/internal/logging"
	"dubber/internal/media"
	"dubber/internal/notifications"
	"dubber/internal/pipeline"
	"dubber/internal/progress"
	"dubber/internal/services/dubbing"
	"dubber/internal/services/ytdlp"
	"dubber/internal/staging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// stack is the fully wired pipeline a command runs against. Commands that
// mutate job state hold the process lock so two invocations cannot race on
// the same store and staging tree.
type stack struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   jobstore.Store
	staging *staging.Manager
	bus     *progress.Bus
	orch    *pipeline.Orchestrator
	svc     *api.Service
	lock    *flock.Flock
}

func (c *commandContext) buildStack(ctx context.Context, exclusive bool) (*stack, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Format: cfg.Logging.Format,
		Level:  cfg.Logging.Level,
	})
	if err != nil {
		return nil, err
	}

	var lock *flock.Flock
	if exclusive {
		lock = flock.New(filepath.Join(cfg.LogDir(), "dubber.lock"))
		acquired, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire process lock: %w", err)
		}
		if !acquired {
			return nil, fmt.Errorf("another dubber instance is already running")
		}
	}

	releaseLock := func() {
		if lock != nil {
			_ = lock.Unlock()
		}
	}

	store, err := jobstore.OpenFromConfig(ctx, cfg)
	if err != nil {
		releaseLock()
		return nil, err
	}

	stagingMgr, err := staging.NewManager(cfg.WorkDir(), logger)
	if err != nil {
		_ = store.Close()
		releaseLock()
		return nil, err
	}

	bus := progress.NewBus()
	notifier := notifications.NewJobNotifier(notifications.NewService(cfg), logger)

	orch, err := pipeline.NewOrchestrator(pipeline.Options{
		Config:     cfg,
		Store:      store,
		Staging:    stagingMgr,
		Bus:        bus,
		Logger:     logger,
		Fetcher:    ytdlp.NewFetcher(cfg, logger),
		Splitter:   media.NewSplitter(cfg, logger),
		Translator: dubbing.NewClient(cfg, logger),
		Merger:     media.NewMerger(cfg, logger),
		Notifier:   notifier,
	})
	if err != nil {
		_ = store.Close()
		releaseLock()
		return nil, err
	}

	return &stack{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		staging: stagingMgr,
		bus:     bus,
		orch:    orch,
		svc:     api.NewService(orch, estimate.New(cfg.Pricing), bus),
		lock:    lock,
	}, nil
}

func (s *stack) close() {
	s.orch.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close job store", logging.Error(err))
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
