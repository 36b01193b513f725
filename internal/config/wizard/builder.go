package wizard

import (
	"strings"

	"github.com/imamik/peupgrade/internal/config"
)

// BuildConfig converts wizard answers into a configuration with defaults
// applied.
func BuildConfig(result *WizardResult) *config.Config {
	cfg := &config.Config{
		PrimaryHost:           strings.TrimSpace(result.PrimaryHost),
		ReplicaHost:           strings.TrimSpace(result.ReplicaHost),
		CompilerHosts:         result.CompilerHosts,
		PrimaryPostgreSQLHost: strings.TrimSpace(result.PrimaryDatabaseHost),
		ReplicaPostgreSQLHost: strings.TrimSpace(result.ReplicaDatabaseHost),
		Version:               strings.TrimSpace(result.Version),
		DownloadMode:          config.DownloadMode(result.DownloadMode),
		PEConf:                strings.TrimSpace(result.PEConf),
		SSH: config.SSHConfig{
			User:           result.SSHUser,
			PrivateKeyPath: result.PrivateKeyPath,
		},
		PCP: config.PCPConfig{
			OrchestratorURL: result.OrchestratorURL,
			TokenFile:       result.PCPTokenFile,
		},
	}
	cfg.ApplyDefaults()
	return cfg
}
