// Package config loads the sync daemon's on-disk YAML configuration,
// mirroring the teacher's per-subsystem struct layout.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Sync holds every tunable the sync manager and its collaborators need.
type Sync struct {
	// Magic is the 4-byte network identifier prefixed to wire messages.
	Magic [4]byte `yaml:"magic"`

	// RequestTimeout bounds how long a single in-flight request may run
	// before it is treated as a transient failure.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxRetries bounds the number of resends before a peer is
	// disconnected.
	MaxRetries int `yaml:"max_retries"`

	// PeerInactivityTimeout disconnects a peer that has completed no
	// request within this window.
	PeerInactivityTimeout time.Duration `yaml:"peer_inactivity_timeout"`

	// MaxHeadersPerMessage bounds a single Headers response.
	MaxHeadersPerMessage int `yaml:"max_headers_per_message"`

	// MaxInFlightBlockRequests is passed through to syncmgr.Options. The
	// sync manager does not read it and places no cap on how many peers
	// have a GetBlocks request outstanding at once.
	MaxInFlightBlockRequests int `yaml:"max_in_flight_block_requests"`
}

// UTXO holds the on-disk UTXO store's tunables.
type UTXO struct {
	// Path is the goleveldb database directory.
	Path string `yaml:"path"`

	// CompressAbove is the value-size threshold (bytes) above which
	// entries are lz4-compressed before being written.
	CompressAbove int `yaml:"compress_above"`
}

// Announce holds the announcement gate's dedup cache size.
type Announce struct {
	DedupCacheSize int `yaml:"dedup_cache_size"`
}

// Config is the full daemon configuration.
type Config struct {
	Sync     Sync     `yaml:"sync"`
	UTXO     UTXO     `yaml:"utxo"`
	Announce Announce `yaml:"announce"`
	Debug    bool     `yaml:"debug"`
}

// Default returns the spec-pinned defaults.
func Default() Config {
	return Config{
		Sync: Sync{
			Magic:                    [4]byte{0x4d, 0x4c, 0x31, 0x00},
			RequestTimeout:           30 * time.Second,
			MaxRetries:               3,
			PeerInactivityTimeout:    300 * time.Second,
			MaxHeadersPerMessage:     2000,
			MaxInFlightBlockRequests: 16,
		},
		UTXO: UTXO{
			Path:          "./data/utxo",
			CompressAbove: 256,
		},
		Announce: Announce{
			DedupCacheSize: 4096,
		},
	}
}

// Load reads and parses a YAML config file, filling any field the file
// omits from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
