// Package ssh provides SSH client utilities for executing commands on remote servers.
// It handles connection establishment with retry logic, key-based authentication,
// command execution with context support, exit status reporting and file upload.
//
// Security: Host key verification is disabled unless a HostKeyCallback is
// configured (see KnownHostsCallback).
package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/util/retry"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second
	defaultMaxRetries  = 5
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Config holds SSH client configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout is the timeout for establishing the TCP connection.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// MaxRetries is the maximum number of connection retry attempts.
	// If zero, defaultMaxRetries is used.
	MaxRetries int

	// RetryDelay is the initial delay between retry attempts.
	// If zero, defaultRetryDelay is used.
	RetryDelay time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback
}

// Client executes commands on a remote server via SSH.
// It parses the private key once during construction and
// creates connections on-demand per call.
type Client struct {
	config *Config
	signer ssh.Signer
}

// NewClient creates a new SSH client and validates the private key.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg

	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.MaxRetries == 0 {
		configCopy.MaxRetries = defaultMaxRetries
	}
	if configCopy.RetryDelay == 0 {
		configCopy.RetryDelay = defaultRetryDelay
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in verification via known_hosts
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Client{
		config: &configCopy,
		signer: signer,
	}, nil
}

// KnownHostsCallback builds a host key callback from one or more
// OpenSSH known_hosts files.
func KnownHostsCallback(files ...string) (ssh.HostKeyCallback, error) {
	cb, err := knownhosts.New(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return cb, nil
}

// Run executes a command and reports its exit status. The error is non-nil
// only when the connection or session failed.
func (c *Client) Run(ctx context.Context, command string) (remote.Result, error) {
	client, err := c.connect(ctx, c.config.MaxRetries)
	if err != nil {
		return remote.Result{}, err
	}
	defer func() { _ = client.Close() }()

	return c.runCommand(ctx, client, command, nil)
}

// Upload streams a local file to remotePath. The file is written to a
// temporary name and renamed once complete, so a partially transferred
// file never appears under remotePath.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	f, err := os.Open(localPath) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	client, err := c.connect(ctx, c.config.MaxRetries)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	tmp := remotePath + ".part"
	command := fmt.Sprintf("mkdir -p %s && cat > %s && mv -f %s %s",
		remote.Quote(path.Dir(remotePath)), remote.Quote(tmp), remote.Quote(tmp), remote.Quote(remotePath))

	res, err := c.runCommand(ctx, client, command, f)
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s:%s: %w", localPath, c.config.Host, remotePath, err)
	}
	if !res.Success() {
		return fmt.Errorf("failed to upload %s to %s:%s: exit status %d: %s",
			localPath, c.config.Host, remotePath, res.ExitCode, res.Output())
	}
	return nil
}

// Ping dials the host once, without retries, and runs a no-op command.
func (c *Client) Ping(ctx context.Context) error {
	client, err := c.connect(ctx, 0)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	res, err := c.runCommand(ctx, client, "true", nil)
	if err != nil {
		return err
	}
	if !res.Success() {
		return fmt.Errorf("ping on %s exited %d", c.config.Host, res.ExitCode)
	}
	return nil
}

// connect establishes SSH connection with retry logic.
func (c *Client) connect(ctx context.Context, maxRetries int) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User: c.config.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(c.signer),
		},
		HostKeyCallback: c.config.HostKeyCallback,
		Timeout:         c.config.DialTimeout,
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	var client *ssh.Client

	err := retry.WithExponentialBackoff(ctx, func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", addr, config)
		var keyErr *knownhosts.KeyError
		if errors.As(dialErr, &keyErr) {
			return retry.Fatal(dialErr)
		}
		return dialErr
	},
		retry.WithMaxRetries(maxRetries),
		retry.WithInitialDelay(c.config.RetryDelay),
		retry.WithMaxDelay(defaultMaxDelay),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to establish SSH connection to %s after %d retry attempts: %w",
			addr, maxRetries, err)
	}

	return client, nil
}

// runCommand executes a command on an established SSH session. The session
// is closed if ctx is done before the command returns.
func (c *Client) runCommand(ctx context.Context, client *ssh.Client, command string, stdin io.Reader) (remote.Result, error) {
	session, err := client.NewSession()
	if err != nil {
		return remote.Result{}, fmt.Errorf("failed to create SSH session on %s: %w", c.config.Host, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		_ = session.Close()
		return remote.Result{}, fmt.Errorf("command on %s interrupted: %w", c.config.Host, ctx.Err())
	case err = <-done:
	}

	res := remote.Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		return res, fmt.Errorf("command failed on %s: %w\nCommand: %s", c.config.Host, err, command)
	}
	return res, nil
}

// String identifies the client's endpoint for logging.
func (c *Client) String() string {
	return c.config.User + "@" + c.config.Host + ":" + strconv.Itoa(c.config.Port)
}
