package main

import (
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"captiondesk/internal/bootstrap"
	"captiondesk/internal/logging"
)

type commandContext struct {
	configFlag *string
	envFlag    *string
	verbose    *bool

	once   sync.Once
	svc    *bootstrap.Services
	svcErr error
}

func newCommandContext(configFlag, envFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		envFlag:    envFlag,
		verbose:    verbose,
	}
}

// services builds the orchestrator on first use. Terminal commands log only
// warnings unless --verbose is set.
func (c *commandContext) services() (*bootstrap.Services, error) {
	c.once.Do(func() {
		level := "warn"
		if c.verbose != nil && *c.verbose {
			level = "debug"
		}
		logger := logging.New(logging.Options{Level: level, Out: os.Stderr})

		c.svc, c.svcErr = bootstrap.Build(bootstrap.Options{
			ConfigPath: flagValue(c.configFlag),
			EnvFile:    flagValue(c.envFlag),
			Logger:     &logger,
		})
	})
	return c.svc, c.svcErr
}

func (c *commandContext) logger() zerolog.Logger {
	if c.svc == nil {
		return zerolog.Nop()
	}
	return c.svc.Log
}

func (c *commandContext) close() error {
	if c.svc == nil {
		return nil
	}
	svc := c.svc
	c.svc = nil
	return svc.Close()
}

func flagValue(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
