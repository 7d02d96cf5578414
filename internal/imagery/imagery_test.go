package imagery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"satinel-backend/internal/areas"
	"satinel-backend/internal/core/types"
	"satinel-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testArea = areas.Area{Id: "AREA_1", BBox: areas.BBox{0, 0, 1, 1}}

func newCache(t *testing.T) *TileCache {
	cache, err := NewTileCache(t.TempDir())
	require.NoError(t, err)
	return cache
}

func TestTileCacheFillsOncePerKey(t *testing.T) {
	cache := newCache(t)

	var fills atomic.Int32
	fill := func(ctx context.Context) (io.ReadCloser, error) {
		fills.Add(1)
		time.Sleep(20 * time.Millisecond)
		return io.NopCloser(strings.NewReader("png-bytes")), nil
	}

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path, _, err := cache.GetOrFill(context.Background(), "static", "AREA_1", "2023-01-01", fill)
			assert.NoError(t, err)
			paths[i] = path
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fills.Load())
	for _, p := range paths {
		assert.Equal(t, paths[0], p)
	}

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestTileCacheFillErrorLeavesNoFile(t *testing.T) {
	cache := newCache(t)

	_, _, err := cache.GetOrFill(context.Background(), "static", "AREA_1", "2023-01-01", func(ctx context.Context) (io.ReadCloser, error) {
		return nil, errors.New("offline")
	})
	assert.EqualError(t, err, "offline")

	_, err = os.Stat(cache.Path("static", "AREA_1", "2023-01-01"))
	assert.True(t, os.IsNotExist(err))
}

func TestStaticSource(t *testing.T) {
	provider, err := storage.NewLocalProvider(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, provider.PutObject(ctx, "imagery", StaticKey("AREA_1", "2023-01-01"), strings.NewReader("tile")))

	source := NewStaticSource(provider, "imagery", newCache(t))

	tile, err := source.FetchTile(ctx, TileRequest{Area: testArea, Date: "2023-01-01"})
	require.NoError(t, err)
	assert.Equal(t, types.ImageryStatic, tile.Source)
	data, err := os.ReadFile(tile.Path)
	require.NoError(t, err)
	assert.Equal(t, "tile", string(data))

	_, err = source.FetchTile(ctx, TileRequest{Area: testArea, Date: "1999-01-01"})
	assert.ErrorIs(t, err, types.ErrImageryUnavailable)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestDynamicSource(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "AREA_1", r.URL.Query().Get("area_id"))
		assert.Equal(t, "2023-01-01", r.URL.Query().Get("date"))
		assert.Equal(t, "0.000000,0.000000,1.000000,1.000000", r.URL.Query().Get("bbox"))
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("remote-tile")) //nolint:errcheck
	}))
	defer server.Close()

	source := NewDynamicSource(server.URL, "secret", newCache(t))

	tile, err := source.FetchTile(context.Background(), TileRequest{Area: testArea, Date: "2023-01-01"})
	require.NoError(t, err)
	assert.Equal(t, types.ImageryDynamic, tile.Source)

	data, err := os.ReadFile(tile.Path)
	require.NoError(t, err)
	assert.Equal(t, "remote-tile", string(data))

	// second fetch is served from the cache
	_, err = source.FetchTile(context.Background(), TileRequest{Area: testArea, Date: "2023-01-01"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())
}

func TestDynamicSourceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "2023-01-01" {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"nope"}`)) //nolint:errcheck
	}))
	defer server.Close()

	source := NewDynamicSource(server.URL, "", newCache(t))

	_, err := source.FetchTile(context.Background(), TileRequest{Area: testArea, Date: "2023-01-01"})
	assert.ErrorIs(t, err, types.ErrImageryUnavailable)
	assert.ErrorContains(t, err, "429")

	_, err = source.FetchTile(context.Background(), TileRequest{Area: testArea, Date: "2023-02-01"})
	assert.ErrorContains(t, err, "content type")
}

type stubSource struct {
	tile Tile
	err  error
}

func (s stubSource) FetchTile(ctx context.Context, req TileRequest) (Tile, error) {
	return s.tile, s.err
}

func TestFallbackSource(t *testing.T) {
	static := stubSource{tile: Tile{Path: "static.png", Source: types.ImageryStatic}}
	broken := stubSource{err: types.ErrImageryUnavailable}

	tile, err := NewFallbackSource(broken, static).FetchTile(context.Background(), TileRequest{Area: testArea})
	require.NoError(t, err)
	assert.Equal(t, "static.png", tile.Path)

	tile, err = NewFallbackSource(stubSource{tile: Tile{Path: "dynamic.png"}}, static).FetchTile(context.Background(), TileRequest{Area: testArea})
	require.NoError(t, err)
	assert.Equal(t, "dynamic.png", tile.Path)

	_, err = NewFallbackSource(broken, broken).FetchTile(context.Background(), TileRequest{Area: testArea})
	assert.ErrorIs(t, err, types.ErrImageryUnavailable)
}

func TestRouter(t *testing.T) {
	router := NewRouter(types.ImageryStatic).
		Register(types.ImageryStatic, stubSource{tile: Tile{Path: "static.png"}})

	tile, err := router.FetchTile(context.Background(), TileRequest{Area: testArea})
	require.NoError(t, err)
	assert.Equal(t, "static.png", tile.Path)

	_, err = router.FetchTile(context.Background(), TileRequest{Area: testArea, Mode: types.ImageryDynamic})
	assert.ErrorIs(t, err, types.ErrImageryUnavailable)
}
