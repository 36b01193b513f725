package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/config/wizard"
)

// Factory function variables for init - can be replaced in tests.
var (
	wizardFileExists       = wizard.FileExists
	wizardConfirmOverwrite = wizard.ConfirmOverwrite
	wizardRunWizard        = wizard.RunWizard
	wizardBuildConfig      = wizard.BuildConfig
	wizardWriteConfig      = wizard.WriteConfig
)

// errInitCanceled is returned when the user declines to overwrite.
var errInitCanceled = errors.New("init canceled")

// Init runs the configuration wizard and writes the result to outputPath.
func Init(ctx context.Context, outputPath string) error {
	if wizardFileExists(outputPath) {
		ok, err := wizardConfirmOverwrite(outputPath)
		if err != nil {
			return fmt.Errorf("failed to confirm overwrite: %w", err)
		}
		if !ok {
			return errInitCanceled
		}
	}

	printWelcome()

	result, err := wizardRunWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard canceled: %w", err)
	}

	cfg := wizardBuildConfig(result)
	if err := wizardWriteConfig(cfg, outputPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printInitSuccess(outputPath, cfg)
	return nil
}

func printWelcome() {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "peupgrade - rolling Puppet Enterprise upgrades")
	fmt.Fprintln(stdout, "==============================================")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "This wizard creates an upgrade configuration for your PE nodes.")
	fmt.Fprintln(stdout)
}

// printInitSuccess prints a summary and next steps.
func printInitSuccess(outputPath string, cfg *config.Config) {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Configuration saved!")
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  File: %s\n", outputPath)
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Upgrade Summary")
	fmt.Fprintln(stdout, "---------------")
	fmt.Fprintf(stdout, "  Version:   %s\n", cfg.Version)
	fmt.Fprintf(stdout, "  Primary:   %s\n", cfg.PrimaryHost)
	if cfg.ReplicaHost != "" {
		fmt.Fprintf(stdout, "  Replica:   %s\n", cfg.ReplicaHost)
	}
	if cfg.PrimaryPostgreSQLHost != "" {
		fmt.Fprintf(stdout, "  Databases: %s\n", strings.Join(nonEmpty(cfg.PrimaryPostgreSQLHost, cfg.ReplicaPostgreSQLHost), ", "))
	}
	if len(cfg.CompilerHosts) > 0 {
		fmt.Fprintf(stdout, "  Compilers: %s\n", strings.Join(cfg.CompilerHosts, ", "))
	}
	fmt.Fprintf(stdout, "  Download:  %s\n", cfg.DownloadMode)
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, "Next steps:")
	fmt.Fprintf(stdout, "  1. Review the plan:  peupgrade plan -c %s\n", outputPath)
	fmt.Fprintf(stdout, "  2. Run the upgrade:  peupgrade upgrade -c %s\n", outputPath)
	fmt.Fprintln(stdout)
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
