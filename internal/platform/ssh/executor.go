package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/imamik/peupgrade/internal/remote"
)

// ExecutorConfig holds the connection defaults applied to every SSH target.
// Per-target user and port from the host spec take precedence.
type ExecutorConfig struct {
	User            string
	Port            int
	PrivateKey      []byte
	DialTimeout     time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	HostKeyCallback ssh.HostKeyCallback
}

// Executor implements remote.Executor over SSH. Clients are created lazily
// per target and reused.
type Executor struct {
	cfg ExecutorConfig

	mu      sync.Mutex
	clients map[string]*Client
}

// NewExecutor creates an SSH executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	return &Executor{
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
}

func (e *Executor) client(t remote.Target) (*Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := t.URI()
	if c, ok := e.clients[key]; ok {
		return c, nil
	}

	user := t.User
	if user == "" {
		user = e.cfg.User
	}
	port := t.Port
	if port == 0 {
		port = e.cfg.Port
	}

	c, err := NewClient(&Config{
		Host:            t.Host,
		Port:            port,
		User:            user,
		PrivateKey:      e.cfg.PrivateKey,
		DialTimeout:     e.cfg.DialTimeout,
		MaxRetries:      e.cfg.MaxRetries,
		RetryDelay:      e.cfg.RetryDelay,
		HostKeyCallback: e.cfg.HostKeyCallback,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH client for %s: %w", t.Name, err)
	}
	e.clients[key] = c
	return c, nil
}

// Run implements remote.Executor.
func (e *Executor) Run(ctx context.Context, t remote.Target, command string) (remote.Result, error) {
	c, err := e.client(t)
	if err != nil {
		return remote.Result{}, err
	}
	return c.Run(ctx, command)
}

// Upload implements remote.Executor.
func (e *Executor) Upload(ctx context.Context, t remote.Target, localPath, remotePath string) error {
	c, err := e.client(t)
	if err != nil {
		return err
	}
	return c.Upload(ctx, localPath, remotePath)
}

// Ping implements remote.Executor.
func (e *Executor) Ping(ctx context.Context, t remote.Target) error {
	c, err := e.client(t)
	if err != nil {
		return err
	}
	return c.Ping(ctx)
}
