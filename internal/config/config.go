// Package config holds the protocol timing constants and queue tuning
// knobs, with optional YAML override loading.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config bundles the tunable parameters of the transport. Zero-value
// fields are filled from Default() by Load. Duration fields are Go
// duration strings in YAML (e.g. `action_timeout: 5s`); yaml.v3 decodes
// those into time.Duration and rejects plain integers for them.
type Config struct {
	// ActionTimeout is the maximum idle time before the peer enqueues
	// a keep-alive PING. §6: ACTION_TIMEOUT = 5000 ms.
	ActionTimeout time.Duration `yaml:"action_timeout"`

	// DropTimeout is the maximum time without an accepted packet
	// before a peer is declared dead. §6: DROP_TIMEOUT = 10000 ms.
	DropTimeout time.Duration `yaml:"drop_timeout"`

	// MaxRTO caps the retransmit timeout. §6: MAX_RTO = 3000 ms.
	MaxRTO time.Duration `yaml:"max_rto"`

	// InitialSRTT and InitialRTTVar seed a freshly created peer's RTT
	// estimators. §4.3.4: srtt = 100, rttvar = 50.
	InitialSRTT   time.Duration `yaml:"initial_srtt"`
	InitialRTTVar time.Duration `yaml:"initial_rttvar"`

	// PeerInboxDepth caps a single peer's outbound queue: SendReliable
	// and SendUnreliable return ErrQueueFull once this many entries are
	// awaiting transmission or acknowledgement, rather than growing the
	// queue without bound against a stalled remote.
	PeerInboxDepth int `yaml:"peer_inbox_depth"`
}

// Default returns the spec's documented constants (§6).
func Default() Config {
	return Config{
		ActionTimeout:  5000 * time.Millisecond,
		DropTimeout:    10000 * time.Millisecond,
		MaxRTO:         3000 * time.Millisecond,
		InitialSRTT:    100 * time.Millisecond,
		InitialRTTVar:  50 * time.Millisecond,
		PeerInboxDepth: 64,
	}
}

// Load reads a YAML file at path and overlays it onto Default(). A
// zero-value duration/int in the file leaves the default in place,
// so operators only need to specify the knobs they want to change.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	var overrides Config
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if overrides.ActionTimeout > 0 {
		cfg.ActionTimeout = overrides.ActionTimeout
	}
	if overrides.DropTimeout > 0 {
		cfg.DropTimeout = overrides.DropTimeout
	}
	if overrides.MaxRTO > 0 {
		cfg.MaxRTO = overrides.MaxRTO
	}
	if overrides.InitialSRTT > 0 {
		cfg.InitialSRTT = overrides.InitialSRTT
	}
	if overrides.InitialRTTVar > 0 {
		cfg.InitialRTTVar = overrides.InitialRTTVar
	}
	if overrides.PeerInboxDepth > 0 {
		cfg.PeerInboxDepth = overrides.PeerInboxDepth
	}

	return cfg, nil
}
