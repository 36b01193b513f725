package wizard

import (
	"context"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/imamik/peupgrade/internal/config"
)

var versionRegex = regexp.MustCompile(`^\d{4}\.\d+\.\d+$`)

func runHostsGroup(ctx context.Context, result *WizardResult) error {
	var compilers string

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Primary").
				Description("Host spec of the primary server: [ssh://|local://][user@]host[:port]").
				Placeholder("pe-primary.example.com").
				Value(&result.PrimaryHost).
				Validate(validatePrimary),
			huh.NewInput().
				Title("Replica (Optional)").
				Description("Leave empty for a topology without disaster recovery").
				Value(&result.ReplicaHost),
			huh.NewText().
				Title("Compilers (Optional)").
				Description("One host spec per line or comma-separated; pcp:// uses the orchestrator").
				Value(&compilers),
		).Title("Hosts"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}

	result.CompilerHosts = parseHostList(compilers)
	return nil
}

func runDatabaseGroup(ctx context.Context, result *WizardResult) error {
	var external bool

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("External PostgreSQL?").
				Description("Extra-large topologies run PE-PostgreSQL on dedicated hosts").
				Value(&external),
		).Title("Databases"),
	).RunWithContext(ctx); err != nil {
		return err
	}
	if !external {
		return nil
	}

	fields := []huh.Field{
		huh.NewInput().
			Title("Primary PostgreSQL host").
			Value(&result.PrimaryDatabaseHost),
	}
	if result.ReplicaHost != "" {
		fields = append(fields, huh.NewInput().
			Title("Replica PostgreSQL host").
			Value(&result.ReplicaDatabaseHost))
	}
	return huh.NewForm(huh.NewGroup(fields...).Title("Databases")).RunWithContext(ctx)
}

func runVersionGroup(ctx context.Context, result *WizardResult) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Target Version").
				Description("Puppet Enterprise release to upgrade to").
				Placeholder("2021.7.1").
				Value(&result.Version).
				Validate(validateVersion),
		).Title("Version"),
	).RunWithContext(ctx)
}

func runStagingGroup(ctx context.Context, result *WizardResult) error {
	result.DownloadMode = string(config.DownloadUpload)

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Download Mode").
				Options(DownloadModeOptions...).
				Value(&result.DownloadMode),
			huh.NewInput().
				Title("pe.conf (Optional)").
				Description("Local answer file passed to the installer").
				Value(&result.PEConf),
		).Title("Staging"),
	).RunWithContext(ctx)
}

func runSSHGroup(ctx context.Context, result *WizardResult) error {
	result.SSHUser = config.DefaultSSHUser
	result.PrivateKeyPath = "~/.ssh/id_rsa"

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("SSH User").
				Value(&result.SSHUser),
			huh.NewInput().
				Title("Private Key").
				Value(&result.PrivateKeyPath),
		).Title("SSH Access"),
	).RunWithContext(ctx)
}

func runPCPGroup(ctx context.Context, result *WizardResult) error {
	if result.OrchestratorURL == "" {
		result.OrchestratorURL = defaultOrchestratorURL(result.PrimaryHost)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Orchestrator URL").
				Value(&result.OrchestratorURL),
			huh.NewInput().
				Title("RBAC Token File").
				Description("Local path to a token allowed to run bolt_shim::command").
				Value(&result.PCPTokenFile),
		).Title("PCP Transport"),
	).RunWithContext(ctx)
}

func validatePrimary(s string) error {
	if strings.TrimSpace(s) == "" {
		return errPrimaryRequired
	}
	return nil
}

func validateVersion(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errVersionRequired
	}
	if !versionRegex.MatchString(s) {
		return errVersionInvalid
	}
	return nil
}

// parseHostList splits on commas and newlines and drops empty entries.
func parseHostList(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	var hosts []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			hosts = append(hosts, f)
		}
	}
	return hosts
}
