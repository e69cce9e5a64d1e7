// Package source defines the remote attribute source boundary.
//
// A Source abstracts the management interface of one engine: it lists
// object identifiers matching a query pattern, reads attribute maps, and
// invokes named no-argument operations. Real implementations live in
// subpackages (see source/jolokia); a StubSource is provided for testing.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotConnected is returned by operations invoked before a successful Open.
var ErrNotConnected = errors.New("source not connected")

// ErrConnectivity classifies open failures: the endpoint is unreachable or
// rejected authentication. Use errors.Is for typed assertions.
var ErrConnectivity = errors.New("cannot reach management endpoint")

// ObjectID is a canonical management object identifier of the form
// "domain:key=value,key=value". Immutable after parsing.
type ObjectID struct {
	raw    string
	domain string
	keys   map[string]string
}

// ParseObjectID parses a canonical object identifier.
func ParseObjectID(s string) (ObjectID, error) {
	domain, props, ok := strings.Cut(s, ":")
	if !ok || domain == "" || props == "" {
		return ObjectID{}, fmt.Errorf("malformed object identifier %q", s)
	}
	keys := make(map[string]string)
	for _, pair := range strings.Split(props, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return ObjectID{}, fmt.Errorf("malformed key property %q in %q", pair, s)
		}
		keys[k] = v
	}
	return ObjectID{raw: s, domain: domain, keys: keys}, nil
}

// MustParseObjectID parses a canonical object identifier, panicking on
// malformed input. For tests and fixed well-known names only.
func MustParseObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical identifier as parsed.
func (o ObjectID) String() string { return o.raw }

// Domain returns the identifier's domain component.
func (o ObjectID) Domain() string { return o.domain }

// KeyProperty returns one key property value, or "" when absent.
func (o ObjectID) KeyProperty(key string) string { return o.keys[key] }

// KeyProperties returns a copy of all key properties.
func (o ObjectID) KeyProperties() map[string]string {
	out := make(map[string]string, len(o.keys))
	for k, v := range o.keys {
		out[k] = v
	}
	return out
}

// SortIDs orders identifiers by canonical name, in place. List
// implementations return identifiers in this order so report rows are
// stable across cycles.
func SortIDs(ids []ObjectID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].raw < ids[j].raw })
}

// Source is one engine's management connection. Implementations are owned
// by a single collector and are not safe for concurrent use.
type Source interface {
	// Open establishes the connection. Calling Open on an already-open
	// source is a no-op: no network traffic is performed.
	Open(ctx context.Context) error

	// List returns the identifiers of all objects matching the query
	// pattern. Requires a prior successful Open.
	List(ctx context.Context, query string) ([]ObjectID, error)

	// Attributes returns the attribute map of one object. Values are
	// implementation-defined scalars (numbers, strings, booleans).
	Attributes(ctx context.Context, id ObjectID) (map[string]any, error)

	// Invoke calls a named no-argument operation on one object.
	Invoke(ctx context.Context, id ObjectID, operation string) error

	// Close drops the connection. Idempotent; a closed source can be
	// re-opened on next use.
	Close() error
}
