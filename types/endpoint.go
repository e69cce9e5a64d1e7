// Package types defines core domain types for the assay collector.
package types

import (
	"errors"
	"fmt"
)

// EngineEndpoint identifies one monitored engine and how to reach its
// management interface. Exactly one of (Host, Port) or SocketPath must be
// set: host/port endpoints are dialed over TCP, SocketPath endpoints are
// dialed over a local Unix socket. Immutable after construction.
type EngineEndpoint struct {
	// Name is the operator-assigned engine name, used in filenames and logs.
	Name string `yaml:"name"`
	// Host is the management host for remote endpoints.
	Host string `yaml:"host"`
	// Port is the management port for remote endpoints (1-65535).
	Port int `yaml:"port"`
	// SocketPath is the Unix socket path for local endpoints.
	SocketPath string `yaml:"socket_path"`
	// Username is the optional user for management authentication.
	Username string `yaml:"username"`
	// Password is the optional password for management authentication.
	Password string `yaml:"password"`
}

// IsLocal reports whether the endpoint is reached over a local Unix socket.
func (e *EngineEndpoint) IsLocal() bool {
	return e.SocketPath != ""
}

// Key returns the unique endpoint key used to deduplicate configured engines.
func (e *EngineEndpoint) Key() string {
	if e.IsLocal() {
		return e.SocketPath
	}
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// String returns a log-friendly identity. Credentials are never included.
func (e *EngineEndpoint) String() string {
	if e.IsLocal() {
		return fmt.Sprintf("%s@%s", e.Name, e.SocketPath)
	}
	return fmt.Sprintf("%s@%s:%d", e.Name, e.Host, e.Port)
}

// Validate checks endpoint identity rules.
func (e *EngineEndpoint) Validate() error {
	if e.Name == "" {
		return errors.New("engine name is required")
	}
	if e.IsLocal() {
		if e.Host != "" || e.Port != 0 {
			return fmt.Errorf("engine %s: socket_path and host/port are mutually exclusive", e.Name)
		}
		return nil
	}
	if e.Host == "" {
		return fmt.Errorf("engine %s: host is required for remote endpoints", e.Name)
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("engine %s: port must be in 1-65535, got %d", e.Name, e.Port)
	}
	if (e.Username == "") != (e.Password == "") {
		return fmt.Errorf("engine %s: username and password must be set together", e.Name)
	}
	return nil
}
