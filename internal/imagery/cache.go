package imagery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"satinel-backend/internal/core/utils"
	"satinel-backend/internal/storage"
)

const maxConcurrentFills = 1024

// TileCache stores tiles on disk under dir/namespace/area/date.png. Fills for
// the same path are serialized so concurrent requests for one tile fetch it
// once, and files are published by rename so readers never see partial data.
type TileCache struct {
	dir   string
	locks *utils.MutexMap[string]
}

func NewTileCache(dir string) (*TileCache, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create tile cache dir %s: %w", dir, err)
	}
	return &TileCache{dir: dir, locks: utils.NewMutexMap[string](maxConcurrentFills)}, nil
}

func (c *TileCache) Path(namespace, areaId, date string) string {
	return filepath.Join(c.dir, namespace, areaId, date+".png")
}

type FillFunc func(ctx context.Context) (io.ReadCloser, error)

// GetOrFill returns the cached path, calling fill to populate it on a miss.
func (c *TileCache) GetOrFill(ctx context.Context, namespace, areaId, date string, fill FillFunc) (string, bool, error) {
	path := c.Path(namespace, areaId, date)

	hit := false
	err := c.locks.WithLock(path, func() error {
		if _, err := os.Stat(path); err == nil {
			hit = true
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to stat cached tile %s: %w", path, err)
		}

		data, err := fill(ctx)
		if err != nil {
			return err
		}
		defer data.Close()

		return storage.WriteFileAtomic(path, data)
	})
	if err != nil {
		return "", false, err
	}

	slog.Debug("tile cache lookup", "path", path, "hit", hit)

	return path, hit, nil
}
