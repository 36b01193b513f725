package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/util/async"
)

// hostcertCommand prints the agent's own certificate.
const hostcertCommand = `cat "$(/opt/puppetlabs/bin/puppet config print hostcert --section agent)"`

// Resolver reads trusted facts from nodes.
type Resolver struct {
	Exec remote.Executor
}

// NewResolver creates a resolver that reads certificates through exec.
func NewResolver(exec remote.Executor) *Resolver {
	return &Resolver{Exec: exec}
}

// Fetch reads one node's facts.
func (r *Resolver) Fetch(ctx context.Context, t remote.Target) (Facts, error) {
	out, err := remote.Check(ctx, r.Exec, t, hostcertCommand)
	if err != nil {
		return Facts{}, fmt.Errorf("failed to read certificate: %w", err)
	}
	facts, err := ParseCertificate([]byte(out))
	if err != nil {
		return Facts{}, err
	}
	return facts, nil
}

// Resolve reads facts from every target in parallel, keyed by target name.
// Any failed read, or any node without a role key, fails the resolution.
// Nothing is retried.
func (r *Resolver) Resolve(ctx context.Context, targets []remote.Target) (map[string]Facts, error) {
	var mu sync.Mutex
	result := make(map[string]Facts, len(targets))

	tasks := make([]async.Task, 0, len(targets))
	for _, t := range targets {
		tasks = append(tasks, async.Task{
			Name: t.Name,
			Func: func(ctx context.Context) error {
				facts, err := r.Fetch(ctx, t)
				if err != nil {
					return err
				}
				if _, err := facts.Role(); err != nil {
					return err
				}
				mu.Lock()
				result[t.Name] = facts
				mu.Unlock()
				return nil
			},
		})
	}

	if err := async.RunParallel(ctx, tasks); err != nil {
		return nil, fmt.Errorf("failed to resolve trusted facts: %w", err)
	}
	return result, nil
}
