package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/wikigen/internal/config"
)

// CacheSchemaVersion is bumped whenever entry semantics change; a version
// mismatch forces a full rebuild.
const CacheSchemaVersion = 1

// CacheEntry records what a page's output was rendered from. Deps holds the
// sorted source paths of the pages its resolved links point at; when the
// resolution environment shifts the dep set shifts with it, which is how
// unchanged pages with changed links get caught.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	OutputPath  string    `json:"output_path"`
	Date        time.Time `json:"date"`
	Deps        []string  `json:"deps,omitempty"`
	RenderedAt  time.Time `json:"rendered_at"`
}

// Cache is the persisted incremental build state, keyed by source path.
type Cache struct {
	SchemaVersion int                    `json:"schema_version"`
	ConfigHash    string                 `json:"config_hash"`
	Entries       map[string]*CacheEntry `json:"entries"`
}

// NewCache creates an empty cache bound to a configuration fingerprint.
func NewCache(configHash string) *Cache {
	return &Cache{
		SchemaVersion: CacheSchemaVersion,
		ConfigHash:    configHash,
		Entries:       make(map[string]*CacheEntry),
	}
}

// LoadCache reads a persisted cache. A missing file yields an empty cache
// and no error; an unreadable or corrupt file yields an error so the caller
// can log it and fall back to a full rebuild.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewCache(""), nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", path, err)
	}
	if c.Entries == nil {
		c.Entries = make(map[string]*CacheEntry)
	}
	return &c, nil
}

// Persist writes the cache atomically via a temp file rename.
func (c *Cache) Persist(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename cache: %w", err)
	}
	return nil
}

// ConfigHash computes a deterministic fingerprint of the configuration.
// Builds under a different configuration never reuse each other's outputs.
func ConfigHash(cfg *config.Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config for hashing: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
