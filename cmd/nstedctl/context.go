package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/okian/nsted/internal/adapters/matfile"
	service "github.com/okian/nsted/internal/app"
	"github.com/okian/nsted/internal/config"
	"github.com/okian/nsted/internal/domain/eeg"
	"github.com/okian/nsted/pkg/logger"
)

type commandContext struct {
	configFlag *string
	outputFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, outputFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		outputFlag: outputFlag,
	}
}

func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(cmd.Context(), path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithWriter(cmd.ErrOrStderr())); err != nil {
			c.configErr = err
			return
		}
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			c.configErr = fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configCopy returns a copy callers may adjust with flag overrides.
func (c *commandContext) configCopy(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, err
	}
	dup := *cfg
	return &dup, nil
}

func (c *commandContext) log() logger.Logger {
	if c.config == nil {
		return logger.Nop()
	}
	return logger.Named("nstedctl")
}

// readRecording decodes the recording stored under the configured data key.
func readRecording(path, key string, maxBytes int64) (*eeg.Recording, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	rec, err := service.DecodeRecording(b, key, matfile.WithMaxInflate(maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return rec, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
