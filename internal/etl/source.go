package etl

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ── Source ──────────────────────────────────────────────────
// A Source extracts one dataset from an external system.
// Implementations live in etl/sources/ — one file per source type.

// ErrUnknownSource is returned when a job names an unregistered source type.
var ErrUnknownSource = errors.New("unknown source type")

// SourceConfig is an opaque configuration map parsed per source type.
type SourceConfig map[string]any

// String returns the string value stored under key, or def.
func (c SourceConfig) String(key, def string) string {
	if v, ok := c[key].(string); ok && v != "" {
		return v
	}
	return def
}

// ConfigField describes a single configuration input for a source.
type ConfigField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// SourceSpec describes a source type and its config fields.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}

// Extract is what a source hands to the pipeline.
type Extract struct {
	Table *Table
	// Version identifies the snapshot that was fetched, if the source
	// serves versioned files. Empty otherwise.
	Version string
	// Skipped counts input lines dropped as malformed.
	Skipped int
}

// Source is the interface every data source must implement.
type Source interface {
	// Spec returns metadata about this source type.
	Spec() SourceSpec

	// Fetch retrieves the full dataset. Any error is fatal for the job.
	Fetch(ctx context.Context, cfg SourceConfig) (*Extract, error)
}

// ── Source Registry ────────────────────────────────────────
// Compile-time registration via init() in each source file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Source{}
)

// RegisterSource registers a source by its spec type.
// Called from init() in each source implementation file.
func RegisterSource(s Source) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Spec().Type] = s
}

// GetSource returns a registered source by type, or an error if not found.
func GetSource(typ string) (Source, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSource, "%q", typ)
	}
	return s, nil
}

// ListSources returns the specs of all registered sources.
func ListSources() []SourceSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	specs := make([]SourceSpec, 0, len(registry))
	for _, s := range registry {
		specs = append(specs, s.Spec())
	}
	return specs
}
