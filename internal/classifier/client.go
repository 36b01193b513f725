package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/imamik/peupgrade/internal/remote"
)

const apiBase = "https://localhost:4433/classifier-api/v1"

// curlAuth uses the primary's agent certificate.
const curlAuth = `--cert "$(/opt/puppetlabs/bin/puppet config print hostcert)" ` +
	`--key "$(/opt/puppetlabs/bin/puppet config print hostprivkey)" ` +
	`--cacert "$(/opt/puppetlabs/bin/puppet config print localcacert)"`

// Renderer applies node groups through the classifier on the primary.
type Renderer struct {
	Exec    remote.Executor
	Primary remote.Target
}

// Apply creates or updates each group. Updates are partial: the classifier
// merges the managed class parameters into an existing group.
func (r *Renderer) Apply(ctx context.Context, groups []NodeGroup) error {
	existing, err := r.list(ctx)
	if err != nil {
		return err
	}

	byName := make(map[string]NodeGroup, len(existing))
	for _, g := range existing {
		byName[g.Name] = g
	}

	for _, g := range groups {
		if cur, ok := byName[g.Name]; ok {
			g.ID = cur.ID
			g.Parent = cur.Parent
			if err := r.request(ctx, "POST", "/groups/"+cur.ID, g, nil); err != nil {
				return fmt.Errorf("failed to update node group %q: %w", g.Name, err)
			}
			continue
		}

		parent, ok := byName[g.ParentName]
		if !ok {
			return fmt.Errorf("cannot create node group %q: parent %q not found", g.Name, g.ParentName)
		}
		g.Parent = parent.ID
		if err := r.request(ctx, "POST", "/groups", g, nil); err != nil {
			return fmt.Errorf("failed to create node group %q: %w", g.Name, err)
		}
	}
	return nil
}

func (r *Renderer) list(ctx context.Context) ([]NodeGroup, error) {
	var groups []NodeGroup
	if err := r.request(ctx, "GET", "/groups", nil, &groups); err != nil {
		return nil, fmt.Errorf("failed to list node groups: %w", err)
	}
	return groups, nil
}

// request runs curl on the primary. The body travels base64-encoded so no
// shell quoting of JSON is needed; the HTTP status is appended on its own
// line.
func (r *Renderer) request(ctx context.Context, method, path string, body, out any) error {
	curl := fmt.Sprintf("curl -sS -X %s %s -H 'Content-Type: application/json' -w '\\n%%{http_code}'", method, curlAuth)

	var cmd string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		cmd = fmt.Sprintf("printf %%s %s | base64 -d | %s --data-binary @- %s",
			base64.StdEncoding.EncodeToString(data), curl, remote.Quote(apiBase+path))
	} else {
		cmd = curl + " " + remote.Quote(apiBase+path)
	}

	stdout, err := remote.Check(ctx, r.Exec, r.Primary, cmd)
	if err != nil {
		return err
	}

	respBody, status, err := splitStatus(stdout)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("classifier returned %d: %s", status, respBody)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(respBody), out); err != nil {
			return fmt.Errorf("failed to decode classifier response: %w", err)
		}
	}
	return nil
}

func splitStatus(out string) (string, int, error) {
	idx := strings.LastIndex(out, "\n")
	body, code := "", out
	if idx >= 0 {
		body, code = out[:idx], out[idx+1:]
	}
	status, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return "", 0, fmt.Errorf("unexpected curl output %q", out)
	}
	return body, status, nil
}
