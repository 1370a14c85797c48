package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Key identifies one engine response: the backend that produced it and
// every input that shaped it.
type Key struct {
	Provider string
	Model    string
	Inputs   []string
}

// Digest is the hex SHA-256 of the key. Each field is length-prefixed, so
// moving bytes between adjacent inputs changes the digest.
func (k Key) Digest() string {
	h := sha256.New()
	var n [8]byte
	for _, s := range append([]string{k.Provider, k.Model}, k.Inputs...) {
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Entry is one stored response.
type Entry struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Response string    `json:"response"`
	StoredAt time.Time `json:"stored_at"`
}

// Cache is a directory of engine responses sharded by the first two digest
// characters. A nil *Cache is a disabled cache: reads miss and writes are
// dropped.
type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// Open creates the cache directory if needed. An empty dir selects
// DefaultDir. A ttl of zero keeps entries forever.
func Open(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// DefaultDir is scribe's directory under the user cache dir, honoring
// XDG_CACHE_HOME.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache directory: %w", err)
	}
	return filepath.Join(base, "scribe"), nil
}

// Dir returns the cache directory, or "" for a disabled cache.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// Get returns the stored response for k. Expired entries are misses and are
// removed.
func (c *Cache) Get(k Key) (string, bool) {
	if c == nil {
		return "", false
	}
	p := c.path(k.Digest())
	e, err := readEntry(p)
	if err != nil {
		return "", false
	}
	if c.expired(e) {
		_ = os.Remove(p)
		return "", false
	}
	return e.Response, true
}

// Put stores response under k. The file is written beside its final name
// and renamed into place, so a concurrent Get never sees a partial entry.
func (c *Cache) Put(k Key, response string) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(Entry{Provider: k.Provider, Model: k.Model, Response: response, StoredAt: c.now()})
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	p := c.path(k.Digest())
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating cache shard: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".entry-*")
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry and reports how many were removed.
func (c *Cache) Clear() (int, error) {
	return c.sweep(func(Entry, error) bool { return true })
}

// Prune removes expired and unreadable entries and reports how many were
// removed.
func (c *Cache) Prune() (int, error) {
	return c.sweep(func(e Entry, err error) bool { return err != nil || c.expired(e) })
}

// Stats summarizes the cache contents.
type Stats struct {
	Dir        string         `json:"dir"`
	Entries    int            `json:"entries"`
	Bytes      int64          `json:"bytes"`
	Expired    int            `json:"expired"`
	ByProvider map[string]int `json:"by_provider,omitempty"`
}

// Stats walks the cache and counts entries.
func (c *Cache) Stats() (Stats, error) {
	st := Stats{Dir: c.Dir()}
	err := c.walk(func(p string, size int64) error {
		st.Entries++
		st.Bytes += size
		e, err := readEntry(p)
		if err != nil {
			return nil
		}
		if c.expired(e) {
			st.Expired++
		}
		if st.ByProvider == nil {
			st.ByProvider = map[string]int{}
		}
		st.ByProvider[e.Provider]++
		return nil
	})
	return st, err
}

func (c *Cache) sweep(remove func(Entry, error) bool) (int, error) {
	n := 0
	err := c.walk(func(p string, _ int64) error {
		if !remove(readEntry(p)) {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("removing %s: %w", p, err)
		}
		n++
		return nil
	})
	return n, err
}

// walk visits every entry file. Temp files of in-flight writes are skipped.
func (c *Cache) walk(visit func(path string, size int64) error) error {
	if c == nil {
		return nil
	}
	err := filepath.WalkDir(c.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".json" || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		return visit(p, info.Size())
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Cache) path(digest string) string {
	return filepath.Join(c.dir, digest[:2], digest+".json")
}

func (c *Cache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.StoredAt) > c.ttl
}

func readEntry(p string) (Entry, error) {
	var e Entry
	data, err := os.ReadFile(p)
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decoding %s: %w", p, err)
	}
	return e, nil
}
