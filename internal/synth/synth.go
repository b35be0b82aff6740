// Package synth provides the voice synthesis engines used to turn message
// text into a playable audio URL.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrNoEngines is returned by an empty Chain.
var ErrNoEngines = errors.New("no synthesis engine configured")

// Engine converts text into an audio URL (http(s) URL or local file path).
type Engine interface {
	Synthesize(ctx context.Context, plainText, messageID string) (string, error)
	Name() string
}

// Chain tries each engine in order and returns the first success.
type Chain struct {
	engines []Engine
	logger  *log.Logger
}

// NewChain creates a fallback chain. A nil logger uses the default logger.
func NewChain(logger *log.Logger, engines ...Engine) *Chain {
	if logger == nil {
		logger = log.Default()
	}
	return &Chain{engines: engines, logger: logger}
}

// Synthesize implements Engine.
func (c *Chain) Synthesize(ctx context.Context, plainText, messageID string) (string, error) {
	if len(c.engines) == 0 {
		return "", ErrNoEngines
	}

	var errs []error
	for i, e := range c.engines {
		u, err := e.Synthesize(ctx, plainText, messageID)
		if err == nil {
			if i > 0 {
				c.logger.Info("Synthesized with fallback engine", "engine", e.Name(), "message", messageID)
			}
			return u, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		c.logger.Warn("Synthesis engine failed", "engine", e.Name(), "message", messageID, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
	}
	if len(errs) == 1 {
		return "", errs[0]
	}
	return "", errors.Join(errs...)
}

// Name implements Engine.
func (c *Chain) Name() string {
	names := make([]string, len(c.engines))
	for i, e := range c.engines {
		names[i] = e.Name()
	}
	return strings.Join(names, ",")
}
