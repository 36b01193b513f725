package async

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunParallel executes multiple tasks in parallel and waits for all of them.
// Every failure is collected; the returned error joins them in task-name order
// so the message is stable across runs.
//
// Example:
//
//	tasks := []Task{
//	    {Name: "compiler-1", Func: stopPuppetDB(c1)},
//	    {Name: "compiler-2", Func: stopPuppetDB(c2)},
//	}
//	if err := RunParallel(ctx, tasks); err != nil {
//	    return err
//	}
func RunParallel(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))

	for _, task := range tasks {
		go func() {
			err := task.Func(ctx)
			resultChan <- result{name: task.Name, err: err}
		}()
	}

	var failed []result
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			failed = append(failed, res)
		}
	}

	if len(failed) == 0 {
		return nil
	}

	sort.Slice(failed, func(i, j int) bool { return failed[i].name < failed[j].name })
	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.name, f.err))
	}
	return errors.Join(errs...)
}
