package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imamik/peupgrade/internal/provisioning"
	"github.com/imamik/peupgrade/internal/provisioning/upgrade"
	"github.com/imamik/peupgrade/internal/topology"
)

// PlanOptions contains options for the plan command.
type PlanOptions struct {
	ConfigPath string
	JSON       bool
	LogFormat  string
}

// Plan validates the configuration against the nodes and prints the plan.
func Plan(ctx context.Context, opts PlanOptions) error {
	run, err := runUpgrade(ctx, opts.ConfigPath, "", true, opts.LogFormat)
	if err != nil {
		return fmt.Errorf("plan failed: %w", err)
	}

	steps := upgrade.Steps(run.plan)
	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(newPlanView(run.plan, steps))
	}

	fmt.Fprint(stdout, renderPlan(run.plan, steps, useStyles()))
	return nil
}

// planView is the JSON form of a plan.
type planView struct {
	Architecture   string         `json:"architecture"`
	Version        string         `json:"version"`
	CurrentVersion string         `json:"current_version,omitempty"`
	Artifact       string         `json:"artifact"`
	URL            string         `json:"url"`
	Tarball        string         `json:"tarball"`
	DownloadMode   string         `json:"download_mode"`
	Nodes          []nodeView     `json:"nodes"`
	Excluded       []string       `json:"excluded,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	Steps          []upgrade.Step `json:"steps"`
}

type nodeView struct {
	Name     string `json:"name"`
	Certname string `json:"certname"`
	Role     string `json:"role"`
	Group    string `json:"group,omitempty"`
	Protocol string `json:"protocol"`
}

func newPlanView(plan *provisioning.Plan, steps []upgrade.Step) planView {
	v := planView{
		Architecture:   plan.Architecture(),
		Version:        plan.Version,
		CurrentVersion: plan.CurrentVersion,
		Artifact:       plan.Artifact.Filename,
		URL:            plan.Artifact.URL,
		Tarball:        plan.Tarball,
		DownloadMode:   string(plan.DownloadMode),
		Excluded:       topology.Names(plan.Topology.Excluded),
		Steps:          steps,
	}
	for _, n := range plan.Topology.Nodes() {
		v.Nodes = append(v.Nodes, nodeView{
			Name:     n.Name(),
			Certname: n.Certname(),
			Role:     string(n.Role),
			Group:    n.Group,
			Protocol: string(n.Target.Protocol),
		})
	}
	for _, w := range plan.Warnings {
		v.Warnings = append(v.Warnings, w.Message)
	}
	return v
}
