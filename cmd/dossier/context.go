package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"dossier/internal/archive"
	"dossier/internal/config"
	"dossier/internal/logging"
	"dossier/internal/normalize"
	"dossier/internal/runlock"
	"dossier/internal/services"
)

type commandContext struct {
	configFlag  *string
	partnerFlag *int64
	jsonFlag    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, partnerFlag *int64, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		partnerFlag: partnerFlag,
		jsonFlag:    jsonFlag,
	}
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

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// partnerID validates the partner scope flag. Every mutating or scoped
// command requires it.
func (c *commandContext) partnerID() (int64, error) {
	if c.partnerFlag == nil || *c.partnerFlag <= 0 {
		return 0, services.Wrap(services.ErrInvalidScope, "cli", "scope", "use --partner to select a partner", nil)
	}
	return *c.partnerFlag, nil
}

func (c *commandContext) openStore() (*archive.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return archive.Open(cfg)
}

// newLogger logs to the log file only; stdout belongs to command output.
// Every invocation carries a run id so one batch run's entries correlate.
func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return logger.With(logging.String("run_id", uuid.NewString())), nil
}

func (c *commandContext) normalizer() (*normalize.Normalizer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return normalize.New(cfg.Matching.ExtraTitlePrefixes...), nil
}

// lockPartner serializes mutating runs for one partner.
func (c *commandContext) lockPartner(partnerID int64) (*runlock.Lock, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return runlock.Acquire(cfg.Paths.LockDir, partnerID)
}
