package cli

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"
)

const maxAliasCacheBytes = 256 << 10

type aliasSnapshot struct {
	Saved   time.Time `json:"saved"`
	Aliases []string  `json:"aliases"`
}

// aliasCache keeps the last known device aliases of each backend URL in one
// file so that shell completion can answer without calling the API.
type aliasCache struct {
	path string
	ttl  time.Duration
}

func openAliasCache() (aliasCache, error) {
	base := os.Getenv("LORACTL_COMPLETION_CACHE_DIR")
	if base == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return aliasCache{}, err
		}
		base = dir
	}
	return aliasCache{path: filepath.Join(base, "lora-control", "aliases.json"), ttl: 30 * time.Second}, nil
}

// snapshots reads the whole file. A missing, oversized or corrupt file reads
// as empty.
func (c aliasCache) snapshots() map[string]aliasSnapshot {
	out := map[string]aliasSnapshot{}
	f, err := os.Open(c.path)
	if err != nil {
		return out
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxAliasCacheBytes+1))
	if err != nil || len(raw) > maxAliasCacheBytes {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]aliasSnapshot{}
	}
	return out
}

func (c aliasCache) Lookup(api string, now time.Time) ([]string, bool) {
	snap, ok := c.snapshots()[api]
	if !ok || len(snap.Aliases) == 0 || now.Sub(snap.Saved) > c.ttl {
		return nil, false
	}
	return snap.Aliases, true
}

// Store replaces the snapshot for api and rewrites the file atomically.
func (c aliasCache) Store(api string, now time.Time, aliases []string) error {
	if len(aliases) == 0 {
		return errors.New("alias cache: nothing to store")
	}
	all := c.snapshots()
	all[api] = aliasSnapshot{Saved: now, Aliases: aliases}
	raw, err := json.Marshal(all)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".aliases-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}
