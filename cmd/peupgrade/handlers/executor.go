package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gossh "golang.org/x/crypto/ssh"

	"github.com/imamik/peupgrade/internal/artifact"
	"github.com/imamik/peupgrade/internal/config"
	"github.com/imamik/peupgrade/internal/platform/pcp"
	"github.com/imamik/peupgrade/internal/platform/s3"
	"github.com/imamik/peupgrade/internal/platform/ssh"
	"github.com/imamik/peupgrade/internal/remote"
)

// Factory function variables - can be replaced in tests.
var (
	newExecutor = buildExecutor
	newMirror   = buildMirror
)

// buildExecutor registers a transport for every protocol the configured
// hosts use. local:// is always available.
func buildExecutor(_ context.Context, cfg *config.Config, timeouts *config.Timeouts) (remote.Executor, error) {
	router := remote.NewRouter().Register(remote.ProtocolLocal, &remote.LocalExecutor{})

	protocols, err := usedProtocols(cfg)
	if err != nil {
		return nil, err
	}

	if protocols[remote.ProtocolSSH] {
		exec, err := sshExecutor(cfg, timeouts)
		if err != nil {
			return nil, err
		}
		router.Register(remote.ProtocolSSH, exec)
	}

	if protocols[remote.ProtocolPCP] {
		exec, err := pcpExecutor(cfg, timeouts)
		if err != nil {
			return nil, err
		}
		router.Register(remote.ProtocolPCP, exec)
	}

	return router, nil
}

func usedProtocols(cfg *config.Config) (map[remote.Protocol]bool, error) {
	out := make(map[remote.Protocol]bool)
	for _, h := range cfg.AllHosts() {
		t, err := remote.ParseTarget(h)
		if err != nil {
			return nil, err
		}
		out[t.Protocol] = true
	}
	return out, nil
}

func sshExecutor(cfg *config.Config, timeouts *config.Timeouts) (*ssh.Executor, error) {
	keyPath, err := privateKeyPath(cfg.SSH.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key: %w", err)
	}

	var hostKeys gossh.HostKeyCallback
	if cfg.SSH.KnownHostsPath != "" {
		if hostKeys, err = ssh.KnownHostsCallback(cfg.SSH.KnownHostsPath); err != nil {
			return nil, err
		}
	}

	return ssh.NewExecutor(ssh.ExecutorConfig{
		User:            cfg.SSH.User,
		Port:            cfg.SSH.Port,
		PrivateKey:      key,
		MaxRetries:      timeouts.SSHMaxRetries,
		RetryDelay:      timeouts.SSHRetryDelay,
		HostKeyCallback: hostKeys,
	}), nil
}

// privateKeyPath returns configured, or the first default key that exists.
func privateKeyPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("ssh.private_key_path is not set and the home directory is unknown: %w", err)
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		p := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ssh.private_key_path is not set and no default key exists in %s", filepath.Join(home, ".ssh"))
}

func pcpExecutor(cfg *config.Config, timeouts *config.Timeouts) (*pcp.Executor, error) {
	token, err := os.ReadFile(cfg.PCP.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read orchestrator token: %w", err)
	}

	var ca []byte
	if cfg.PCP.CACert != "" {
		if ca, err = os.ReadFile(cfg.PCP.CACert); err != nil {
			return nil, fmt.Errorf("failed to read orchestrator CA certificate: %w", err)
		}
	}

	client, err := pcp.NewClient(pcp.Config{
		URL:          cfg.PCP.OrchestratorURL,
		Token:        strings.TrimSpace(string(token)),
		CACert:       ca,
		Environment:  cfg.PCP.Environment,
		PollInterval: timeouts.PollInterval,
		JobTimeout:   timeouts.PCPJob,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator client: %w", err)
	}
	return pcp.NewExecutor(client), nil
}

// buildMirror returns the release mirror for s3 download mode, or nil.
func buildMirror(ctx context.Context, cfg *config.Config) (artifact.Mirror, error) {
	if cfg.DownloadMode != config.DownloadS3 {
		return nil, nil
	}
	client, err := s3.NewClient(ctx, s3.Options{
		Endpoint:  cfg.Mirror.Endpoint,
		Region:    cfg.Mirror.Region,
		AccessKey: cfg.Mirror.AccessKey,
		SecretKey: cfg.Mirror.SecretKey,
		PathStyle: cfg.Mirror.PathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror client: %w", err)
	}
	return client, nil
}
