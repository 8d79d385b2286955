package contextwin

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"epub-translator/internal/logger"
	"epub-translator/internal/model"
	"epub-translator/internal/types"
)

// Capability records what was learned about one provider/model pair.
type Capability struct {
	Thinking   bool      `json:"thinking"`
	DetectedAt time.Time `json:"detected_at"`
}

// capabilityFile is the on-disk shape of the cache.
type capabilityFile struct {
	Version string                `json:"version"`
	Entries map[string]Capability `json:"entries"`
}

// CapabilityCache is the only state shared across concurrent document
// pipelines. Reads are concurrent; writes are single-writer per key
// under the lock. Persistence is a JSON file, best effort.
type CapabilityCache struct {
	path    string
	mu      sync.RWMutex
	entries map[string]Capability
}

// NewCapabilityCache creates a cache persisted at path. An empty path
// keeps the cache in memory only.
func NewCapabilityCache(path string) *CapabilityCache {
	return &CapabilityCache{path: path, entries: make(map[string]Capability)}
}

// Load reads the cache file if it exists.
func (c *CapabilityCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to read capability cache", err)
	}

	var file capabilityFile
	if err := json.Unmarshal(data, &file); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to parse capability cache", err)
	}
	c.entries = file.Entries
	if c.entries == nil {
		c.entries = make(map[string]Capability)
	}
	return nil
}

// save persists the cache. Callers hold at least a read lock.
func (c *CapabilityCache) save() error {
	if c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(capabilityFile{Version: "1", Entries: c.entries}, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrInternal, "failed to encode capability cache", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return types.NewAppError(types.ErrConfig, "failed to write capability cache", err)
	}
	return nil
}

// Lookup returns the cached capability for key.
func (c *CapabilityCache) Lookup(key string) (Capability, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cap, ok := c.entries[key]
	return cap, ok
}

// Store records a capability and persists the cache.
func (c *CapabilityCache) Store(key string, cap Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cap
	if err := c.save(); err != nil {
		logger.Warn("capability cache persist failed", logger.Err(err))
	}
}

// ResolveThinking answers whether the provider's model is a thinking
// model, probing the provider once and caching the answer under the
// provider name.
func (c *CapabilityCache) ResolveThinking(ctx context.Context, p model.Provider) (bool, error) {
	if cap, ok := c.Lookup(p.Name()); ok {
		return cap.Thinking, nil
	}
	thinking, err := p.DetectThinking(ctx)
	if err != nil {
		return false, err
	}
	c.Store(p.Name(), Capability{Thinking: thinking, DetectedAt: time.Now()})
	logger.Debug("provider capability detected",
		logger.String("provider", p.Name()),
		logger.Bool("thinking", thinking))
	return thinking, nil
}
