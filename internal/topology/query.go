package topology

import (
	"fmt"

	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/remote"
)

// Nodes returns every node once, in slot order.
func (t *Topology) Nodes() []Node {
	out := []Node{t.Primary}
	for _, n := range []*Node{t.Replica, t.PrimaryDatabase, t.ReplicaDatabase} {
		if n != nil {
			out = append(out, *n)
		}
	}
	return append(out, t.Compilers...)
}

// InstallTargets returns the nodes that run the installer directly: the
// primary and any separate database hosts, deduplicated.
func (t *Topology) InstallTargets() []Node {
	return dedupe([]*Node{&t.Primary, t.PrimaryDatabase, t.ReplicaDatabase})
}

// HasCompilers reports whether any compilers are declared.
func (t *Topology) HasCompilers() bool { return len(t.Compilers) > 0 }

// Clustered reports whether the primary's PuppetDB is backed by a separate
// database host, which is upgraded only after the primary installs. A
// database on the primary itself is upgraded by the same installer run.
func (t *Topology) Clustered() bool {
	return t.PrimaryDatabase != nil
}

// UsesProtocol reports whether any node is reached over p.
func (t *Topology) UsesProtocol(p remote.Protocol) bool {
	for _, n := range t.Nodes() {
		if n.Target.Protocol == p {
			return true
		}
	}
	return false
}

// CheckTransfer rejects install targets whose transport cannot receive
// files when the artifact has to be uploaded.
func (t *Topology) CheckTransfer(needsUpload bool) error {
	if !needsUpload {
		return nil
	}
	for _, n := range t.InstallTargets() {
		if n.Target.Protocol == remote.ProtocolPCP {
			return fmt.Errorf("%w: %s uses %s:// and cannot receive the installer tarball",
				ErrUnsupportedProtocol, n.Name(), remote.ProtocolPCP)
		}
	}
	return nil
}

// CompilersMissingRoleKey returns compilers without the current-format role key.
func (t *Topology) CompilersMissingRoleKey() []Node {
	var out []Node
	for _, c := range t.Compilers {
		if !c.Facts.Has(identity.PPAuthRole) {
			out = append(out, c)
		}
	}
	return out
}

// CountByRole returns the number of nodes per role.
func (t *Topology) CountByRole() map[Role]int {
	counts := make(map[Role]int)
	for _, n := range t.Nodes() {
		counts[n.Role]++
	}
	return counts
}

// Targets returns the targets of nodes.
func Targets(nodes []Node) []remote.Target {
	out := make([]remote.Target, len(nodes))
	for i, n := range nodes {
		out[i] = n.Target
	}
	return out
}

// Names returns the names of nodes.
func Names(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name()
	}
	return out
}

// Certnames returns the certnames of nodes.
func Certnames(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Certname()
	}
	return out
}

func dedupe(nodes []*Node) []Node {
	seen := make(map[string]bool)
	var out []Node
	for _, n := range nodes {
		if n == nil || seen[n.Name()] {
			continue
		}
		seen[n.Name()] = true
		out = append(out, *n)
	}
	return out
}
