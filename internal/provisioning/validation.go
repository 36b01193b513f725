package provisioning

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/topology"
)

// ValidationError represents a plan validation error or warning.
type ValidationError struct {
	Field    string // Plan field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == "error"
}

// CheckPlan logs warnings and fails when any check reports an error.
// Warnings are kept on the plan for rendering.
func CheckPlan(observer Observer, plan *Plan) error {
	var errs []string
	plan.Warnings = nil
	for _, ve := range ValidatePlan(plan) {
		if ve.IsError() {
			errs = append(errs, ve.Error())
			continue
		}
		plan.Warnings = append(plan.Warnings, ve)
		LogValidationWarning(observer, ve)
	}

	if len(errs) > 0 {
		return fmt.Errorf("plan validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// ValidatePlan runs checks that need the resolved topology and the
// installed version.
func ValidatePlan(plan *Plan) []ValidationError {
	var errs []ValidationError
	topo := plan.Topology

	// --- Version ---

	target, err := semver.NewVersion(plan.Version)
	if err != nil {
		errs = append(errs, ValidationError{
			Field:    "Version",
			Message:  fmt.Sprintf("invalid target version %q: %v", plan.Version, err),
			Severity: "error",
		})
	}
	if plan.CurrentVersion != "" && target != nil {
		current, err := semver.NewVersion(plan.CurrentVersion)
		switch {
		case err != nil:
			errs = append(errs, ValidationError{
				Field:    "CurrentVersion",
				Message:  fmt.Sprintf("cannot parse installed version %q", plan.CurrentVersion),
				Severity: "warning",
			})
		case target.LessThan(current):
			errs = append(errs, ValidationError{
				Field:    "Version",
				Message:  fmt.Sprintf("downgrade from %s to %s is not supported", current, target),
				Severity: "error",
			})
		case target.Equal(current):
			errs = append(errs, ValidationError{
				Field:    "Version",
				Message:  fmt.Sprintf("%s is already installed; the installer will run again", current),
				Severity: "warning",
			})
		}
	}

	// --- Grouping ---

	for _, n := range topo.Excluded {
		errs = append(errs, ValidationError{
			Field:    "Compilers",
			Message:  fmt.Sprintf("compiler %s has availability group %q matching neither the primary nor the replica; it will not be upgraded", n.Name(), n.Group),
			Severity: "warning",
		})
	}
	if topo.Replica != nil && topo.HasCompilers() {
		if len(topo.PrimaryGroup) == 0 {
			errs = append(errs, ValidationError{
				Field:    "PrimaryGroup",
				Message:  "no compilers share the primary's availability group",
				Severity: "warning",
			})
		}
		if len(topo.ReplicaGroup) == 0 {
			errs = append(errs, ValidationError{
				Field:    "ReplicaGroup",
				Message:  "no compilers share the replica's availability group",
				Severity: "warning",
			})
		}
	}

	// --- Certificates ---

	for _, n := range topo.CompilersMissingRoleKey() {
		if n.Target.Protocol == remote.ProtocolPCP {
			errs = append(errs, ValidationError{
				Field:    "Compilers",
				Message:  fmt.Sprintf("compiler %s needs a reissued certificate to gain %s but uses %s://; connect it over ssh", n.Name(), "pp_auth_role", remote.ProtocolPCP),
				Severity: "error",
			})
		}
	}

	// --- Transport ---

	if topo.UsesProtocol(remote.ProtocolPCP) {
		errs = append(errs, ValidationError{
			Field:    "Nodes",
			Message:  fmt.Sprintf("%d node(s) use %s://; the upgrade waits for the orchestrator after the primary install", countProtocol(topo, remote.ProtocolPCP), remote.ProtocolPCP),
			Severity: "warning",
		})
	}

	return errs
}

func countProtocol(topo *topology.Topology, p remote.Protocol) int {
	n := 0
	for _, node := range topo.Nodes() {
		if node.Target.Protocol == p {
			n++
		}
	}
	return n
}
