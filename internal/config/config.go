// Package config loads the static ring membership and per-query
// default configuration documents spec.md §6 assumes exist out of
// band (the three-helper ring and each query's send/receive window
// sizes), in the YAML form the rest of the pack's tooling favors.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/luxfi/ipa-helper/pkg/ids"
)

// HelperEndpoint names one ring member and where to reach it.
type HelperEndpoint struct {
	Identity ids.HelperIdentity `yaml:"identity"`
	Address  string             `yaml:"address"`
}

// RingConfig describes the fixed three-helper ring this instance
// participates in, and which identity it itself holds.
type RingConfig struct {
	Self    ids.HelperIdentity `yaml:"self"`
	Helpers []HelperEndpoint   `yaml:"helpers"`
}

// Validate checks the ring has exactly three distinct members and that
// Self names one of them.
func (c RingConfig) Validate() error {
	if len(c.Helpers) != 3 {
		return fmt.Errorf("config: ring must have exactly 3 helpers, got %d", len(c.Helpers))
	}
	seen := make(map[ids.HelperIdentity]bool, 3)
	foundSelf := false
	for _, h := range c.Helpers {
		if seen[h.Identity] {
			return fmt.Errorf("config: duplicate helper identity %q", h.Identity)
		}
		seen[h.Identity] = true
		if h.Identity == c.Self {
			foundSelf = true
		}
		if h.Address == "" {
			return fmt.Errorf("config: helper %q missing address", h.Identity)
		}
	}
	if !foundSelf {
		return fmt.Errorf("config: self identity %q not present in helpers list", c.Self)
	}
	return nil
}

// Identities returns the ring's three identities in file order.
func (c RingConfig) Identities() [3]ids.HelperIdentity {
	var out [3]ids.HelperIdentity
	for i, h := range c.Helpers {
		out[i] = h.Identity
	}
	return out
}

// QueryDefaults carries the per-query knobs that are reasonable to fix
// ahead of time rather than pass on every new_query call: the
// send/receive window sizes for the gateway's buffers (spec.md §5,
// Concurrency & Resource Model). Only the send window drives
// backpressure; gateway.Config does not read the receive window.
type QueryDefaults struct {
	SendWindow    int `yaml:"send_window"`
	ReceiveWindow int `yaml:"receive_window"`
}

// Defaults returns the hardcoded fallback used when no config file
// sets query defaults explicitly.
func Defaults() QueryDefaults {
	return QueryDefaults{SendWindow: 16, ReceiveWindow: 16}
}

// Document is the top-level shape of a ring configuration file.
type Document struct {
	Ring    RingConfig    `yaml:"ring"`
	Queries QueryDefaults `yaml:"query_defaults"`
}

// Load reads and validates a ring configuration document from path.
func Load(path string) (Document, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return Document{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if doc.Queries == (QueryDefaults{}) {
		doc.Queries = Defaults()
	}
	if err := doc.Ring.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}
