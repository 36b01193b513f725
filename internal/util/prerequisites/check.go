// Package prerequisites checks that the commands the local installer
// wrapper shells out to are on PATH.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool is a command that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	Required bool

	// Purpose explains what the command is used for.
	Purpose string
}

// InstallTools returns the commands `peupgrade install` runs on the node.
func InstallTools() []Tool {
	return []Tool{
		{Name: "tar", Required: true, Purpose: "extracts the PE tarball"},
		{Name: "systemctl", Required: true, Purpose: "manages pe-puppetdb and the puppet agent"},
		{Name: "mkdir", Required: true, Purpose: "creates the pe-puppetdb drop-in directory"},
	}
}

// CheckResult is the outcome for one tool.
type CheckResult struct {
	Tool  Tool
	Found bool
	Path  string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error naming every missing required tool, or nil.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.Purpose))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check looks each tool up on PATH.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}
		if path, err := exec.LookPath(tool.Name); err == nil {
			result.Found = true
			result.Path = path
		} else {
			results.Missing = append(results.Missing, tool)
		}
		results.Results = append(results.Results, result)
	}

	return results
}

// CheckForInstall checks the tools returned by InstallTools.
func CheckForInstall() *CheckResults {
	return Check(InstallTools())
}
