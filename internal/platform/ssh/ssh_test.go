package ssh

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/peupgrade/internal/remote"
)

// generateTestKey returns a PEM-encoded ed25519 private key and its public key.
func generateTestKey(t *testing.T) ([]byte, ssh.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("failed to marshal test key: %v", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		t.Fatalf("failed to convert public key: %v", err)
	}
	return pem.EncodeToMemory(block), sshPub
}

// startTestServer runs an in-process SSH server that executes "exec"
// requests with /bin/sh on the local machine.
func startTestServer(t *testing.T, authorized ssh.PublicKey) int {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if bytes.Equal(key.Marshal(), authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("unauthorized key")
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(conn, cfg)
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port
}

func serveConn(nc net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer func() { _ = ch.Close() }()
			for req := range requests {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
					_ = req.Reply(false, nil)
					return
				}
				_ = req.Reply(true, nil)

				cmd := exec.Command("/bin/sh", "-c", payload.Command)
				cmd.Stdin = ch
				cmd.Stdout = ch
				cmd.Stderr = ch.Stderr()
				code := 0
				if err := cmd.Run(); err != nil {
					var exitErr *exec.ExitError
					if errors.As(err, &exitErr) {
						code = exitErr.ExitCode()
					} else {
						code = 127
					}
				}
				status := struct{ Status uint32 }{uint32(code)}
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
				return
			}
		}()
	}
}

func TestNewClient_Success(t *testing.T) {
	key, _ := generateTestKey(t)

	client, err := NewClient(&Config{Host: "192.168.1.100", User: "root", PrivateKey: key})
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, defaultPort, client.config.Port)
	assert.Equal(t, defaultDialTimeout, client.config.DialTimeout)
	assert.Equal(t, defaultMaxRetries, client.config.MaxRetries)
	assert.Equal(t, defaultRetryDelay, client.config.RetryDelay)
	assert.NotNil(t, client.signer)
	assert.Equal(t, "root@192.168.1.100:22", client.String())
}

func TestNewClient_Validation(t *testing.T) {
	key, _ := generateTestKey(t)

	tests := []struct {
		name string
		cfg  *Config
		want string
	}{
		{name: "nil config", cfg: nil, want: "config cannot be nil"},
		{name: "empty host", cfg: &Config{User: "root", PrivateKey: key}, want: "config host cannot be empty"},
		{name: "empty user", cfg: &Config{Host: "h", PrivateKey: key}, want: "config user cannot be empty"},
		{name: "empty key", cfg: &Config{Host: "h", User: "root"}, want: "config private key cannot be empty"},
		{name: "invalid key", cfg: &Config{Host: "h", User: "root", PrivateKey: []byte("invalid key")}, want: "failed to parse private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tt.want), "got %v", err)
		})
	}
}

func TestNewClient_ConfigNotMutated(t *testing.T) {
	key, _ := generateTestKey(t)
	cfg := &Config{Host: "192.168.1.100", User: "root", PrivateKey: key}

	_, err := NewClient(cfg)
	require.NoError(t, err)

	assert.Zero(t, cfg.Port)
	assert.Zero(t, cfg.DialTimeout)
	assert.Zero(t, cfg.MaxRetries)
	assert.Nil(t, cfg.HostKeyCallback)
}

func TestRun_ContextCancellation(t *testing.T) {
	key, _ := generateTestKey(t)
	client, err := NewClient(&Config{
		Host:        "192.0.2.1", // TEST-NET-1, never routable
		User:        "root",
		PrivateKey:  key,
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		DialTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Run(ctx, "echo test")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_RunReportsExitStatus(t *testing.T) {
	key, pub := generateTestKey(t)
	port := startTestServer(t, pub)

	executor := NewExecutor(ExecutorConfig{User: "tester", PrivateKey: key, MaxRetries: 1, RetryDelay: 10 * time.Millisecond})
	target := remote.Target{Name: "node", Host: "127.0.0.1", Port: port, Protocol: remote.ProtocolSSH}

	res, err := executor.Run(context.Background(), target, "echo hello; echo oops >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)

	res, err = executor.Run(context.Background(), target, "true")
	require.NoError(t, err)
	assert.True(t, res.Success())
}

func TestExecutor_Upload(t *testing.T) {
	key, pub := generateTestKey(t)
	port := startTestServer(t, pub)

	dir := t.TempDir()
	src := filepath.Join(dir, "puppet-enterprise.tar.gz")
	require.NoError(t, os.WriteFile(src, bytes.Repeat([]byte("x"), 4096), 0o600))
	dst := filepath.Join(dir, "upload", "pe.tar.gz")

	executor := NewExecutor(ExecutorConfig{User: "tester", PrivateKey: key, MaxRetries: 1, RetryDelay: 10 * time.Millisecond})
	target := remote.Target{Name: "node", Host: "127.0.0.1", Port: port, Protocol: remote.ProtocolSSH}

	require.NoError(t, executor.Upload(context.Background(), target, src, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())
	_, err = os.Stat(dst + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestExecutor_Ping(t *testing.T) {
	key, pub := generateTestKey(t)
	port := startTestServer(t, pub)

	executor := NewExecutor(ExecutorConfig{User: "tester", PrivateKey: key, RetryDelay: 10 * time.Millisecond})
	up := remote.Target{Name: "up", Host: "127.0.0.1", Port: port, Protocol: remote.ProtocolSSH}
	require.NoError(t, executor.Ping(context.Background(), up))

	// Grab a free port and close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	down := remote.Target{Name: "down", Host: "127.0.0.1", Port: closedPort, Protocol: remote.ProtocolSSH}
	assert.Error(t, executor.Ping(context.Background(), down))
}

func TestExecutor_ReusesClientPerTarget(t *testing.T) {
	key, _ := generateTestKey(t)
	executor := NewExecutor(ExecutorConfig{User: "root", PrivateKey: key})

	a := remote.MustParseTarget("ssh://admin@host-a:2200")
	c1, err := executor.client(a)
	require.NoError(t, err)
	c2, err := executor.client(a)
	require.NoError(t, err)
	assert.Same(t, c1, c2)
	assert.Equal(t, "admin", c1.config.User)
	assert.Equal(t, 2200, c1.config.Port)

	b, err := executor.client(remote.MustParseTarget("host-b"))
	require.NoError(t, err)
	assert.Equal(t, "root", b.config.User)
	assert.Equal(t, defaultPort, b.config.Port)
}

func TestKnownHostsCallback_MissingFile(t *testing.T) {
	_, err := KnownHostsCallback(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load known_hosts")
}
