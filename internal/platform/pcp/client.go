package pcp

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/imamik/peupgrade/internal/remote"
	"github.com/imamik/peupgrade/internal/util/retry"
)

const (
	commandTask         = "bolt_shim::command"
	defaultEnvironment  = "production"
	defaultPollInterval = 2 * time.Second
	defaultJobTimeout   = 30 * time.Minute
	requestTimeout      = 30 * time.Second
)

// ErrNotConnected is returned by Ping when the orchestrator reports that the
// node's pxp-agent is not connected.
var ErrNotConnected = errors.New("pxp-agent not connected")

// Config holds orchestrator API settings.
type Config struct {
	// URL is the orchestrator base URL, e.g. https://primary:8143.
	URL string
	// Token is an RBAC token with permission to run tasks.
	Token string
	// CACert is the PEM CA bundle used to verify the orchestrator. When empty
	// the system pool is used.
	CACert []byte
	// Environment is the code environment tasks run in.
	Environment  string
	PollInterval time.Duration
	JobTimeout   time.Duration

	// HTTPClient overrides the client built from CACert. Used in tests.
	HTTPClient *http.Client
}

// Client talks to the PE orchestrator API.
type Client struct {
	base   *url.URL
	cfg    Config
	client *http.Client
}

// NewClient validates the configuration and creates a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("orchestrator URL cannot be empty")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("orchestrator token cannot be empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid orchestrator URL %q: %w", cfg.URL, err)
	}

	if cfg.Environment == "" {
		cfg.Environment = defaultEnvironment
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.JobTimeout == 0 {
		cfg.JobTimeout = defaultJobTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if len(cfg.CACert) > 0 {
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(cfg.CACert) {
				return nil, fmt.Errorf("no certificates found in orchestrator CA bundle")
			}
			tlsCfg.RootCAs = pool
		}
		httpClient = &http.Client{
			Timeout:   requestTimeout,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		}
	}

	return &Client{base: base, cfg: cfg, client: httpClient}, nil
}

type taskRequest struct {
	Environment string            `json:"environment"`
	Task        string            `json:"task"`
	Params      map[string]string `json:"params"`
	Scope       taskScope         `json:"scope"`
}

type taskScope struct {
	Nodes []string `json:"nodes"`
}

type jobResponse struct {
	Job struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"job"`
}

type jobNodes struct {
	Items []jobNode `json:"items"`
}

type jobNode struct {
	Name   string         `json:"name"`
	State  string         `json:"state"`
	Result map[string]any `json:"result"`
}

type inventoryNode struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// RunCommand runs command on node through the bolt_shim::command task and
// waits for the job to finish.
func (c *Client) RunCommand(ctx context.Context, node, command string) (remote.Result, error) {
	req := taskRequest{
		Environment: c.cfg.Environment,
		Task:        commandTask,
		Params:      map[string]string{"command": command},
		Scope:       taskScope{Nodes: []string{node}},
	}

	var job jobResponse
	if err := c.do(ctx, http.MethodPost, "/orchestrator/v1/command/task", req, &job); err != nil {
		return remote.Result{}, fmt.Errorf("failed to submit task to %s: %w", node, err)
	}
	if job.Job.Name == "" {
		return remote.Result{}, fmt.Errorf("orchestrator returned no job for %s", node)
	}

	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.JobTimeout)
	defer cancel()

	var final *jobNode
	err := retry.Poll(pollCtx, c.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		var nodes jobNodes
		if err := c.do(ctx, http.MethodGet, "/orchestrator/v1/jobs/"+url.PathEscape(job.Job.Name)+"/nodes", nil, &nodes); err != nil {
			return false, err
		}
		for i := range nodes.Items {
			n := nodes.Items[i]
			if n.Name != node {
				continue
			}
			switch n.State {
			case "finished", "failed":
				final = &n
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return remote.Result{}, fmt.Errorf("job %s on %s did not complete: %w", job.Job.Name, node, err)
	}

	return resultFromNode(*final)
}

// resultFromNode converts a bolt_shim::command node result. A failed node
// carries its exit code under _error.details.exit_code.
func resultFromNode(n jobNode) (remote.Result, error) {
	res := remote.Result{
		Stdout: stringField(n.Result, "stdout"),
		Stderr: stringField(n.Result, "stderr"),
	}
	if code, ok := intField(n.Result, "exit_code"); ok {
		res.ExitCode = code
		return res, nil
	}

	if n.State == "finished" {
		return res, nil
	}

	errObj, _ := n.Result["_error"].(map[string]any)
	if details, ok := errObj["details"].(map[string]any); ok {
		if code, ok := intField(details, "exit_code"); ok {
			res.ExitCode = code
			if res.Stderr == "" {
				res.Stderr = stringField(errObj, "msg")
			}
			return res, nil
		}
	}
	return res, fmt.Errorf("task failed on %s: %s", n.Name, stringField(errObj, "msg"))
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// Connected reports whether the orchestrator sees node's pxp-agent.
func (c *Client) Connected(ctx context.Context, node string) (bool, error) {
	var inv inventoryNode
	if err := c.do(ctx, http.MethodGet, "/orchestrator/v1/inventory/"+url.PathEscape(node), nil, &inv); err != nil {
		return false, err
	}
	return inv.Connected, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Authentication", c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("orchestrator %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode orchestrator response: %w", err)
	}
	return nil
}

// Executor adapts Client to remote.Executor. Targets are addressed by name,
// which must be the node's certname.
type Executor struct {
	client *Client
}

// NewExecutor wraps client.
func NewExecutor(client *Client) *Executor {
	return &Executor{client: client}
}

// Run implements remote.Executor.
func (e *Executor) Run(ctx context.Context, t remote.Target, command string) (remote.Result, error) {
	return e.client.RunCommand(ctx, t.Name, command)
}

// Upload implements remote.Executor. The pcp transport cannot move files.
func (e *Executor) Upload(_ context.Context, t remote.Target, _, _ string) error {
	return fmt.Errorf("%w: %s uses pcp", remote.ErrUploadUnsupported, t.Name)
}

// Ping implements remote.Executor.
func (e *Executor) Ping(ctx context.Context, t remote.Target) error {
	ok, err := e.client.Connected(ctx, t.Name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, t.Name)
	}
	return nil
}
