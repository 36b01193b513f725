package provisioning

import (
	"context"

	"github.com/imamik/peupgrade/internal/config"
)

// Context wraps all dependencies and state needed for an upgrade phase.
type Context struct {
	context.Context
	Config   *config.Config
	Observer Observer
	Timeouts *config.Timeouts

	// Plan is set by the validation phase.
	Plan *Plan

	// Result is set by the final phase.
	Result string

	acted []string
}

// NewContext creates a new upgrade context. A nil observer logs to the console.
func NewContext(ctx context.Context, cfg *config.Config, observer Observer) *Context {
	if observer == nil {
		observer = NewConsoleObserver()
	}
	return &Context{
		Context:  ctx,
		Config:   cfg,
		Observer: observer,
		Timeouts: config.LoadTimeouts(),
	}
}

// Acted records nodes the current phase issued operations against.
func (c *Context) Acted(names ...string) {
	for _, n := range names {
		if !contains(c.acted, n) {
			c.acted = append(c.acted, n)
		}
	}
}

// takeActed returns and clears the recorded nodes.
func (c *Context) takeActed() []string {
	out := c.acted
	c.acted = nil
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
