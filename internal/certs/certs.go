// Package certs re-issues an agent certificate with additional trusted
// fact extensions.
package certs

import (
	"context"
	"encoding/base64"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/imamik/peupgrade/internal/identity"
	"github.com/imamik/peupgrade/internal/remote"
)

const (
	csrAttributesPath = "/etc/puppetlabs/puppet/csr_attributes.yaml"
	puppetBin         = "/opt/puppetlabs/bin/puppet"
	puppetserverBin   = "/opt/puppetlabs/bin/puppetserver"
)

// certServices load the host certificate at startup. try-restart leaves
// units that are stopped, such as a compiler's pe-puppetdb mid-upgrade,
// stopped.
var certServices = []string{"pe-puppetserver", "pe-puppetdb", "pxp-agent"}

// Modifier re-issues certificates through the CA on the primary.
type Modifier struct {
	Exec    remote.Executor
	Primary remote.Target
}

// AddExtensions merges exts into the node's csr_attributes.yaml and
// re-issues its certificate. The private key is kept. Running services that
// hold the old certificate are restarted afterwards.
func (m *Modifier) AddExtensions(ctx context.Context, node remote.Target, certname string, exts map[identity.Key]string) error {
	existing, err := remote.Check(ctx, m.Exec, node, "cat "+csrAttributesPath+" 2>/dev/null || true")
	if err != nil {
		return fmt.Errorf("failed to read csr attributes on %s: %w", node.Name, err)
	}

	merged, err := MergeCSRAttributes([]byte(existing), exts)
	if err != nil {
		return fmt.Errorf("csr attributes on %s: %w", node.Name, err)
	}

	cn := remote.Quote(certname)
	steps := []struct {
		target remote.Target
		cmd    string
	}{
		{node, fmt.Sprintf("printf %%s %s | base64 -d > %s",
			base64.StdEncoding.EncodeToString(merged), csrAttributesPath)},
		{m.Primary, fmt.Sprintf("%s ca clean --certname %s", puppetserverBin, cn)},
		{node, fmt.Sprintf("rm -f \"$(%[1]s config print certdir)/%[2]s.pem\" \"$(%[1]s config print requestdir)/%[2]s.pem\" && %[1]s ssl submit_request --certname %[2]s",
			puppetBin, cn)},
		{m.Primary, fmt.Sprintf("%s ca sign --certname %s", puppetserverBin, cn)},
		{node, fmt.Sprintf("%s ssl download_cert --certname %s", puppetBin, cn)},
		{node, "systemctl try-restart " + strings.Join(certServices, " ")},
	}

	for _, s := range steps {
		if _, err := remote.Check(ctx, m.Exec, s.target, s.cmd); err != nil {
			return fmt.Errorf("failed to re-issue certificate for %s: %w", certname, err)
		}
	}
	return nil
}

// MergeCSRAttributes sets extension requests in a csr_attributes.yaml
// document, keeping every other key. pp_* extensions are written by short
// name, others by OID.
func MergeCSRAttributes(existing []byte, exts map[identity.Key]string) ([]byte, error) {
	doc := map[string]any{}
	if len(strings.TrimSpace(string(existing))) > 0 {
		if err := yaml.Unmarshal(existing, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	}

	requests, _ := doc["extension_requests"].(map[string]any)
	if requests == nil {
		requests = map[string]any{}
	}

	keys := slices.SortedFunc(maps.Keys(exts), func(a, b identity.Key) int {
		return strings.Compare(a.Name, b.Name)
	})
	for _, k := range keys {
		name := k.OID
		if strings.HasPrefix(k.Name, "pp_") {
			name = k.Name
		}
		requests[name] = exts[k]
	}
	doc["extension_requests"] = requests

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return out, nil
}
