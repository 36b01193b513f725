package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/imamik/peupgrade/internal/remote"
)

// ValidDownloadModes lists the accepted download_mode values.
var ValidDownloadModes = []DownloadMode{DownloadUpload, DownloadDirect, DownloadS3}

// Validate checks the configuration and returns the first problem found.
// Topology rules that need trusted facts are checked later, against the
// resolved nodes.
func (c *Config) Validate() error {
	if c.PrimaryHost == "" {
		return fmt.Errorf("primary_host is required")
	}
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.StrictNewVersion(c.Version); err != nil {
		return fmt.Errorf("invalid version %q: %w", c.Version, err)
	}

	if err := c.validateHosts(); err != nil {
		return fmt.Errorf("host validation failed: %w", err)
	}

	if !slices.Contains(ValidDownloadModes, c.DownloadMode) {
		return fmt.Errorf("invalid download_mode %q: must be one of %v", c.DownloadMode, ValidDownloadModes)
	}
	if c.DownloadMode == DownloadS3 && c.Mirror.Bucket == "" {
		return fmt.Errorf("mirror.bucket is required when download_mode is %q", DownloadS3)
	}

	if c.PEConf != "" {
		if _, err := os.Stat(c.PEConf); err != nil {
			return fmt.Errorf("pe_conf: %w", err)
		}
	}

	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port %d out of range", c.SSH.Port)
	}

	if c.usesPCP() {
		if c.PCP.OrchestratorURL == "" {
			return fmt.Errorf("pcp.orchestrator_url is required when any host uses pcp://")
		}
		if c.PCP.TokenFile == "" {
			return fmt.Errorf("pcp.token_file is required when any host uses pcp://")
		}
	}

	return nil
}

func (c *Config) validateHosts() error {
	seen := make(map[string]string)
	check := func(slot, spec string) error {
		t, err := remote.ParseTarget(spec)
		if err != nil {
			return fmt.Errorf("%s: %w", slot, err)
		}
		if prev, ok := seen[t.Host]; ok {
			return fmt.Errorf("%s: host %s is already declared as %s", slot, t.Host, prev)
		}
		seen[t.Host] = slot
		return nil
	}

	if err := check("primary_host", c.PrimaryHost); err != nil {
		return err
	}
	optional := []struct{ slot, spec string }{
		{"replica_host", c.ReplicaHost},
		{"primary_postgresql_host", c.PrimaryPostgreSQLHost},
		{"replica_postgresql_host", c.ReplicaPostgreSQLHost},
	}
	for _, o := range optional {
		if o.spec == "" {
			continue
		}
		if err := check(o.slot, o.spec); err != nil {
			return err
		}
	}
	for i, h := range c.CompilerHosts {
		if err := check(fmt.Sprintf("compiler_hosts[%d]", i), h); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) usesPCP() bool {
	for _, h := range c.AllHosts() {
		if t, err := remote.ParseTarget(h); err == nil && t.Protocol == remote.ProtocolPCP {
			return true
		}
	}
	return false
}
