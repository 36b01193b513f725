package handlers

import (
	"fmt"
	"io"
	"os"

	"github.com/imamik/peupgrade/internal/provisioning"
)

// logOutput receives JSON logs. Replaced in tests.
var logOutput io.Writer = os.Stderr

// newObserver returns the observer for a --log-format value.
func newObserver(format string) (provisioning.Observer, error) {
	switch format {
	case "", "text":
		return provisioning.NewConsoleObserver(), nil
	case "json":
		return provisioning.NewJSONObserver(logOutput), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", format)
	}
}
