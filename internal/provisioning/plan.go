package provisioning

import (
	"time"

	"github.com/imamik/peupgrade/internal/artifact"
	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/topology"
)

// Plan is everything the upgrade acts on. It is built once during
// validation and not modified afterwards.
type Plan struct {
	Version        string
	CurrentVersion string

	Topology *topology.Topology
	Artifact artifact.Artifact

	// Tarball is the artifact path on install targets.
	Tarball string
	// PEConf is the local answer file, RemotePEConf its path on install targets.
	PEConf       string
	RemotePEConf string

	DownloadMode config.DownloadMode

	Warnings []ValidationError
}

// Architecture returns the detected architecture name.
func (p *Plan) Architecture() string {
	return p.Topology.Architecture.String()
}

// PhaseResult records what one phase did.
type PhaseResult struct {
	Phase    string        `json:"phase"`
	Targets  []string      `json:"targets,omitempty"`
	Success  bool          `json:"success"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`
}
