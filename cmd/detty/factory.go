package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/dettyhq/detty/internal/config"
	"github.com/dettyhq/detty/internal/engine"
	"github.com/dettyhq/detty/internal/orchestrator"
	"github.com/dettyhq/detty/internal/session"
	"github.com/dettyhq/detty/internal/tools"
)

// app bundles the wired advisor stack for a CLI command.
type app struct {
	cfg     *config.Config
	store   session.Store
	eng     *engine.Client
	orch    *orchestrator.Orchestrator
	signals *orchestrator.SignalManager
	closers []func() error
}

// buildApp wires config, engine, store, tools, and orchestrator for
// live use. events is optional.
func buildApp(events func(orchestrator.Event)) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return wireApp(cfg, events)
}

// buildEvalApp wires the stack with an in-process profile store so the
// throwaway per-case visitors never persist into the real session
// database.
func buildEvalApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Storage.InMemory = true
	return wireApp(cfg, nil)
}

func wireApp(cfg *config.Config, events func(orchestrator.Event)) (*app, error) {
	a := &app{cfg: cfg}

	var err error
	a.eng, err = engine.NewClient(engine.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        cfg.Anthropic.APIKey,
		UseAWSBedrock: cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	a.store, err = openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.store.Close)

	dataset, err := loadDataset(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	roles, err := loadRoles()
	if err != nil {
		a.Close()
		return nil, err
	}

	logger, err := openDebugLogger()
	if err != nil {
		logger = orchestrator.NopLogger() // logging is optional
	} else {
		a.closers = append(a.closers, logger.Close)
	}

	if cwd, err := os.Getwd(); err == nil {
		if sm, err := orchestrator.NewSignalManager(filepath.Join(cwd, ".detty")); err == nil {
			a.signals = sm
			a.closers = append(a.closers, func() error {
				sm.Close()
				return nil
			})
		}
	}

	a.orch, err = orchestrator.New(orchestrator.Deps{
		Store:    a.store,
		Engine:   a.eng,
		Registry: tools.NewLagosRegistry(dataset),
		Roles:    roles,
		Config:   cfg,
		Logger:   logger,
		Events:   events,
		Signals:  a.signals,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	return a, nil
}

// Close releases everything buildApp opened.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// openStoreOnly opens just the session store, for commands that never
// touch the engine.
func openStoreOnly() (session.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openStore(cfg)
}

func openStore(cfg *config.Config) (session.Store, error) {
	if cfg.Storage.InMemory {
		return session.NewMemoryStore(), nil
	}
	path := cfg.Storage.DBPath
	if path == "" {
		path = session.DefaultDBPath()
	}
	store, err := session.OpenSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	return store, nil
}

func loadDataset(cfg *config.Config) (*tools.Dataset, error) {
	if cfg.Dataset == "" {
		return tools.DefaultDataset(), nil
	}
	ds, err := tools.LoadDataset(cfg.Dataset)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return ds, nil
}

// loadRoles prefers the configs/ role cards, falling back to the
// built-in ones when the files are absent.
func loadRoles() (*config.RoleConfigs, error) {
	if _, err := os.Stat(filepath.Join("configs", "advisory.yaml")); err != nil {
		return config.DefaultRoleConfigs(), nil
	}
	roles, err := config.LoadRoleConfigs("configs")
	if err != nil {
		return nil, fmt.Errorf("load role cards: %w", err)
	}
	return roles, nil
}

func openDebugLogger() (*orchestrator.DebugLogger, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	logPath := filepath.Join(cwd, ".detty", "logs",
		"turns-"+time.Now().Format("20060102-150405")+".log")
	return orchestrator.NewDebugLogger(logPath)
}
