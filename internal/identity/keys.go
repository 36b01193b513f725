package identity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingTrustedFacts is returned when a node's certificate carries none
// of the accepted role keys.
var ErrMissingTrustedFacts = errors.New("missing trusted facts")

// Key is a named certificate extension.
type Key struct {
	Name string
	OID  string
}

func (k Key) String() string { return k.Name }

// Extensions used for role and group assignment.
var (
	PPAuthRole             = Key{Name: "pp_auth_role", OID: "1.3.6.1.4.1.34380.1.3.13"}
	PeadmRole              = Key{Name: "peadm_role", OID: "1.3.6.1.4.1.34380.1.1.9812"}
	PeadmAvailabilityGroup = Key{Name: "peadm_availability_group", OID: "1.3.6.1.4.1.34380.1.1.9813"}
	PPCluster              = Key{Name: "pp_cluster", OID: "1.3.6.1.4.1.34380.1.1.14"}
)

// Lookup orders, highest priority first.
var (
	RoleKeys  = []Key{PPAuthRole, PeadmRole}
	GroupKeys = []Key{PeadmAvailabilityGroup, PPCluster}
)

// Facts are the trusted facts of one node.
type Facts struct {
	Certname string
	// Extensions maps dotted OIDs to decoded values.
	Extensions map[string]string
}

// Lookup returns the value of the first key present in f.
func (f Facts) Lookup(keys []Key) (value string, key Key, ok bool) {
	for _, k := range keys {
		if v, found := f.Extensions[k.OID]; found {
			return v, k, true
		}
	}
	return "", Key{}, false
}

// Has reports whether the extension is present.
func (f Facts) Has(k Key) bool {
	_, ok := f.Extensions[k.OID]
	return ok
}

// Role returns the node's role value.
func (f Facts) Role() (string, error) {
	v, _, ok := f.Lookup(RoleKeys)
	if !ok {
		return "", fmt.Errorf("%w: %s has none of %s", ErrMissingTrustedFacts, f.Certname, keyNames(RoleKeys))
	}
	return v, nil
}

// Group returns the node's availability group tag, or "" when unset.
func (f Facts) Group() string {
	v, _, _ := f.Lookup(GroupKeys)
	return v
}

func keyNames(keys []Key) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name
	}
	return strings.Join(names, ", ")
}
