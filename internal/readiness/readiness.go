package readiness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/util/async"
	"github.com/imamik/peupgrade/internal/util/retry"
)

// ErrTimeout is wrapped by every *TimeoutError.
var ErrTimeout = errors.New("readiness timeout")

// TimeoutError reports a wait that did not succeed in time.
type TimeoutError struct {
	What    string
	Timeout time.Duration
	Last    error
}

func (e *TimeoutError) Error() string {
	if e.Last != nil {
		return fmt.Sprintf("%s not ready after %s: %v", e.What, e.Timeout, e.Last)
	}
	return fmt.Sprintf("%s not ready after %s", e.What, e.Timeout)
}

// Unwrap exposes ErrTimeout and the last observed failure.
func (e *TimeoutError) Unwrap() []error {
	if e.Last != nil {
		return []error{ErrTimeout, e.Last}
	}
	return []error{ErrTimeout}
}

// Well-known status service names.
const (
	ServiceOrchestrator = "orchestrator-service"
	ServicePuppetDB     = "puppetdb-status"
	ServiceConsole      = "rbac-service"
	ServicePuppetServer = "server"
)

// ServicePort returns the port that serves a status service.
func ServicePort(service string) int {
	switch service {
	case ServiceOrchestrator, "broker-service":
		return config.OrchestratorPort
	case ServicePuppetDB:
		return config.PuppetDBPort
	case ServiceConsole, "classifier-service", "activity-service":
		return config.ConsoleServicesPort
	default:
		return config.PuppetServerPort
	}
}

// Waiter polls nodes through an executor.
type Waiter struct {
	Exec     remote.Executor
	Interval time.Duration
}

type serviceStatus struct {
	State string `json:"state"`
}

// WaitReady polls the status API on host until service reports running.
// The request is issued from host itself so no external port needs to be
// reachable.
func (w *Waiter) WaitReady(ctx context.Context, service string, host remote.Target, timeout time.Duration) error {
	url := fmt.Sprintf("https://localhost:%d/status/v1/services/%s?level=brief", ServicePort(service), service)
	cmd := "curl -sk --max-time 10 " + remote.Quote(url)

	return w.poll(ctx, fmt.Sprintf("%s on %s", service, host.Name), timeout, func(ctx context.Context) (bool, error) {
		out, err := remote.Check(ctx, w.Exec, host, cmd)
		if err != nil {
			return false, err
		}
		var st serviceStatus
		if err := json.Unmarshal([]byte(out), &st); err != nil {
			return false, fmt.Errorf("unexpected status response: %w", err)
		}
		if st.State != "running" {
			return false, fmt.Errorf("state is %q", st.State)
		}
		return true, nil
	})
}

// WaitReachable polls every target with a transport ping until all of
// them answer.
func (w *Waiter) WaitReachable(ctx context.Context, targets []remote.Target, timeout time.Duration) error {
	var mu sync.Mutex
	pending := make(map[string]remote.Target, len(targets))
	for _, t := range targets {
		pending[t.Name] = t
	}

	return w.poll(ctx, fmt.Sprintf("%d nodes", len(targets)), timeout, func(ctx context.Context) (bool, error) {
		mu.Lock()
		tasks := make([]async.Task, 0, len(pending))
		for _, t := range pending {
			tasks = append(tasks, async.Task{
				Name: t.Name,
				Func: func(ctx context.Context) error {
					if err := w.Exec.Ping(ctx, t); err != nil {
						return err
					}
					mu.Lock()
					delete(pending, t.Name)
					mu.Unlock()
					return nil
				},
			})
		}
		mu.Unlock()

		err := async.RunParallel(ctx, tasks)
		if err == nil {
			return true, nil
		}

		mu.Lock()
		names := make([]string, 0, len(pending))
		for name := range pending {
			names = append(names, name)
		}
		mu.Unlock()
		slices.Sort(names)
		return false, fmt.Errorf("unreachable: %s: %w", strings.Join(names, ", "), err)
	})
}

func (w *Waiter) poll(ctx context.Context, what string, timeout time.Duration, cond retry.Condition) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last error
	err := retry.Poll(waitCtx, w.Interval, func(ctx context.Context) (bool, error) {
		ok, err := cond(ctx)
		if err != nil && ctx.Err() == nil {
			last = err
		}
		return ok, err
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, retry.ErrDeadline) {
		return &TimeoutError{What: what, Timeout: timeout, Last: last}
	}
	return err
}
