package remote

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Protocol identifies how a node is reached.
type Protocol string

const (
	// ProtocolSSH runs commands over SSH. It is the default.
	ProtocolSSH Protocol = "ssh"
	// ProtocolLocal runs commands on the machine running peupgrade.
	ProtocolLocal Protocol = "local"
	// ProtocolPCP runs commands through the PE orchestrator and the
	// node's pxp-agent. It cannot transfer files and is interrupted
	// whenever the orchestrator restarts.
	ProtocolPCP Protocol = "pcp"
)

// ErrInvalidTarget is returned for host specs that cannot be parsed.
var ErrInvalidTarget = errors.New("invalid target")

// Target is an addressable host.
type Target struct {
	// Name is the host name as written in the configuration. It is the
	// key used in logs, maps and results.
	Name     string
	Host     string
	Port     int
	User     string
	Protocol Protocol
}

// ParseTarget parses a host spec of the form [protocol://][user@]host[:port].
func ParseTarget(spec string) (Target, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Target{}, fmt.Errorf("%w: empty host spec", ErrInvalidTarget)
	}

	raw := spec
	if !strings.Contains(raw, "://") {
		raw = string(ProtocolSSH) + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w %q: %v", ErrInvalidTarget, spec, err)
	}
	if u.Hostname() == "" {
		return Target{}, fmt.Errorf("%w %q: missing host", ErrInvalidTarget, spec)
	}
	if u.Path != "" && u.Path != "/" {
		return Target{}, fmt.Errorf("%w %q: unexpected path %q", ErrInvalidTarget, spec, u.Path)
	}

	t := Target{
		Name:     u.Hostname(),
		Host:     u.Hostname(),
		Protocol: Protocol(strings.ToLower(u.Scheme)),
	}
	switch t.Protocol {
	case ProtocolSSH, ProtocolLocal, ProtocolPCP:
	default:
		return Target{}, fmt.Errorf("%w %q: unknown protocol %q", ErrInvalidTarget, spec, u.Scheme)
	}

	if u.User != nil {
		t.User = u.User.Username()
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return Target{}, fmt.Errorf("%w %q: bad port %q", ErrInvalidTarget, spec, p)
		}
		t.Port = port
	}

	return t, nil
}

// MustParseTarget is like ParseTarget but panics on error. Intended for tests
// and static tables.
func MustParseTarget(spec string) Target {
	t, err := ParseTarget(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the target name.
func (t Target) String() string {
	return t.Name
}

// URI renders the target back into host spec form.
func (t Target) URI() string {
	var b strings.Builder
	b.WriteString(string(t.Protocol))
	b.WriteString("://")
	if t.User != "" {
		b.WriteString(t.User)
		b.WriteString("@")
	}
	b.WriteString(t.Host)
	if t.Port != 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(t.Port))
	}
	return b.String()
}

// Names returns the names of the given targets in order.
func Names(targets []Target) []string {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	return names
}
