package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bogband/website/util"
)

const defaultSyncConcurrency = 4

// ErrEmptyRemote is returned when the bucket lists no press images while local ones
// exist. Mirroring that listing would delete every local image.
var ErrEmptyRemote = errors.New("remote has no press images")

// Bucket is the remote object store holding the press images.
type Bucket interface {
	// List returns the object keys below the bucket prefix, relative to it.
	List(ctx context.Context) ([]string, error)
	// Download writes the object stored under the relative key to w.
	Download(ctx context.Context, key string, w io.WriterAt) error
}

// SlideCatalog records the ordered slide list produced by a sync.
type SlideCatalog interface {
	ReplaceSlides(paths []string) error
}

type RemoteSyncConfig struct {
	// Dir is the local directory the press images are stored in.
	Dir string
	// URLPrefix is prepended to file names to form slide paths, e.g. /press/.
	URLPrefix    string
	TargetMaxDim int
	Concurrency  int
	// AllowEmpty lets an empty bucket listing delete every local image.
	AllowEmpty bool
}

// RemoteSync mirrors the press images of a bucket into a local directory and
// rewrites the slide catalog to match.
type RemoteSync struct {
	bucket  Bucket
	catalog SlideCatalog
	cfg     RemoteSyncConfig
}

func NewRemoteSync(bucket Bucket, catalog SlideCatalog, cfg RemoteSyncConfig) (*RemoteSync, error) {
	if bucket == nil {
		return nil, errors.New("no bucket provided for remote sync")
	}
	if cfg.Dir == "" {
		return nil, errors.New("no output directory provided for remote sync")
	}
	if cfg.URLPrefix == "" {
		cfg.URLPrefix = "/press/"
	}
	if !strings.HasSuffix(cfg.URLPrefix, "/") {
		cfg.URLPrefix += "/"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultSyncConcurrency
	}

	return &RemoteSync{
		bucket:  bucket,
		catalog: catalog,
		cfg:     cfg,
	}, nil
}

func (r *RemoteSync) getLocalFiles() (mapset.Set[string], error) {
	return localImages(r.cfg.Dir)
}

func (r *RemoteSync) getRemoteFiles(ctx context.Context) (mapset.Set[string], error) {
	keys, err := r.bucket.List(ctx)
	if err != nil {
		return nil, err
	}

	remoteFiles := mapset.NewSet[string]()
	for key := range slices.Values(keys) {
		// nested keys are not slides
		if strings.Contains(key, "/") || !util.IsSupportedImage(key) {
			continue
		}
		remoteFiles.Add(key)
	}

	if remoteFiles.Cardinality() == 0 {
		slog.Info("no remote press images found")
	}
	return remoteFiles, nil
}

// SyncFolder deletes local images missing from the bucket, downloads new ones, and
// records the resulting slide list. It reports whether any file changed. An empty
// listing fails with ErrEmptyRemote unless AllowEmpty is set, leaving files and
// catalog untouched.
func (r *RemoteSync) SyncFolder(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create press directory: %w", err)
	}

	localFiles, err := r.getLocalFiles()
	if err != nil {
		return false, err
	}

	remoteFiles, err := r.getRemoteFiles(ctx)
	if err != nil {
		return false, fmt.Errorf("unable to list remote press images: %w", err)
	}

	if remoteFiles.Cardinality() == 0 && localFiles.Cardinality() > 0 && !r.cfg.AllowEmpty {
		return false, fmt.Errorf("%w: keeping %d local images, allow an empty remote to delete them", ErrEmptyRemote, localFiles.Cardinality())
	}

	toDelete := localFiles.Difference(remoteFiles).ToSlice()
	toDownload := remoteFiles.Difference(localFiles).ToSlice()
	slices.Sort(toDelete)
	slices.Sort(toDownload)

	changed := false
	if len(toDelete) > 0 {
		slog.Info("deleting local press images", "count", len(toDelete), "names", toDelete)
		for name := range slices.Values(toDelete) {
			if err := os.Remove(filepath.Join(r.cfg.Dir, name)); err != nil {
				slog.Warn("unable to remove local file", "name", name, "error", err)
				continue
			}
			changed = true
		}
	}

	if len(toDownload) > 0 {
		slog.Info("adding press images", "count", len(toDownload), "names", toDownload)

		downloaded := make([]bool, len(toDownload))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Concurrency)
		for i, name := range toDownload {
			g.Go(func() error {
				if err := r.download(gctx, name); err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					slog.Warn("error while downloading press image", "name", name, "error", err)
					return nil
				}
				downloaded[i] = true
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return changed, err
		}
		changed = changed || slices.Contains(downloaded, true)
	}

	if r.catalog != nil {
		present, err := r.getLocalFiles()
		if err != nil {
			return changed, err
		}
		names := present.Intersect(remoteFiles).ToSlice()
		slices.Sort(names)

		paths := make([]string, len(names))
		for i, name := range names {
			paths[i] = r.cfg.URLPrefix + name
		}
		if err := r.catalog.ReplaceSlides(paths); err != nil {
			return changed, fmt.Errorf("unable to record slides: %w", err)
		}
	}

	return changed, nil
}

// download fetches one object into a temp file, downscales it and moves it into place.
func (r *RemoteSync) download(ctx context.Context, name string) error {
	tmp, err := os.CreateTemp(r.cfg.Dir, ".download-*")
	if err != nil {
		return fmt.Errorf("unable to create file for download, %s, %w", name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := r.bucket.Download(ctx, name, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to download object, %s, %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return err
	}
	resized, ok, err := Downscale(data, r.cfg.TargetMaxDim)
	if err != nil {
		slog.Warn("unable to downscale press image, keeping original", "name", name, "error", err)
	} else if ok {
		if err := os.WriteFile(tmpPath, resized, 0o644); err != nil {
			return fmt.Errorf("unable to write downscaled image, %s, %w", name, err)
		}
		slog.Debug("downscaled press image", "name", name, "max_dim", r.cfg.TargetMaxDim)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, filepath.Join(r.cfg.Dir, name))
}

// Run syncs once immediately and then on every interval until ctx is done.
func (r *RemoteSync) Run(ctx context.Context, interval time.Duration) {
	sync := func() {
		syncCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()
		changed, err := r.SyncFolder(syncCtx)
		if err != nil {
			slog.Warn("error while syncing with remote", "error", err)
			return
		}
		if changed {
			slog.Info("press images updated from remote")
		}
	}

	sync()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sync()
		}
	}
}
