// Package assets loads, caches and syncs the image files the page shows
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bogband/website/util"
)

var (
	ErrNotFound    = errors.New("asset not found")
	ErrUnsupported = errors.New("unsupported asset type")
)

const (
	defaultLoadTimeout = 30 * time.Second
	// DefaultCacheSize bounds the number of assets, loaded or failed, kept in memory.
	DefaultCacheSize = 256
)

// Source fetches the raw bytes of an asset addressed by its URL path, e.g. /press/bb_press0.png.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads assets from a local directory laid out like the URL space.
type DirSource struct {
	Root string
}

func (d DirSource) Fetch(_ context.Context, name string) ([]byte, error) {
	p := filepath.Join(d.Root, filepath.FromSlash(strings.TrimPrefix(name, "/")))
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", name, err)
	}
	return data, nil
}

type Asset struct {
	Name        string
	Data        []byte
	ContentType string
	LoadedAt    time.Time
}

type entry struct {
	done  chan struct{}
	asset *Asset
	err   error
}

// Cache keeps asset bytes in a bounded LRU. An asset is fetched from the source once
// while it stays cached and concurrent requests for it share that fetch. Failures are
// cached like successes, so a flood of missing names only churns the LRU.
type Cache struct {
	source  Source
	timeout time.Duration

	// mu makes lookup-or-insert atomic; the LRU only locks single operations.
	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
}

func NewCache(source Source) *Cache {
	return NewSizedCache(source, DefaultCacheSize)
}

// NewSizedCache keeps at most size assets. A non-positive size uses DefaultCacheSize.
func NewSizedCache(source Source, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for a non-positive size
	entries, _ := lru.New[string, *entry](size)
	return &Cache{
		source:  source,
		timeout: defaultLoadTimeout,
		entries: entries,
	}
}

// Preload starts loading src in the background. Errors are only logged.
func (c *Cache) Preload(src string) {
	name, err := cleanName(src)
	if err != nil {
		slog.Debug("skipping preload", "src", src, "error", err)
		return
	}

	e, started := c.lookup(name)
	if !started {
		return
	}
	go func() {
		c.load(name, e)
		if e.err != nil {
			slog.Debug("asset preload failed", "name", name, "error", e.err)
		}
	}()
}

// Get returns the asset, loading it first if no earlier load exists.
func (c *Cache) Get(ctx context.Context, src string) (*Asset, error) {
	name, err := cleanName(src)
	if err != nil {
		return nil, err
	}

	e, started := c.lookup(name)
	if started {
		c.load(name, e)
	}

	select {
	case <-e.done:
		return e.asset, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of assets cached or loading.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// lookup returns the entry for name, creating it when missing. started reports whether
// the caller created it and must load it. An evicted entry stays valid for whoever
// already holds it.
func (c *Cache) lookup(name string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries.Get(name); ok {
		return e, false
	}
	e := &entry{done: make(chan struct{})}
	c.entries.Add(name, e)
	return e, true
}

func (c *Cache) load(name string, e *entry) {
	defer close(e.done)

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	data, err := c.source.Fetch(ctx, name)
	if err != nil {
		e.err = err
		return
	}
	e.asset = &Asset{
		Name:        name,
		Data:        data,
		ContentType: http.DetectContentType(data),
		LoadedAt:    time.Now(),
	}
}

// cleanName normalises an asset URL path and rejects anything that is not a supported image.
func cleanName(src string) (string, error) {
	name := path.Clean("/" + src)
	if !util.IsSupportedImage(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, src)
	}
	return name, nil
}
