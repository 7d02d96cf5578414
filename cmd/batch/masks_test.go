package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"satinel-backend/internal/core/types"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMask(t *testing.T, path string, boxes ...image.Rectangle) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for _, b := range boxes {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				img.SetGray(x, y, color.Gray{Y: 1})
			}
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

func TestMaskDiff(t *testing.T) {
	dir := t.TempDir()
	before := filepath.Join(dir, "before.png")
	after := filepath.Join(dir, "after.png")

	building := image.Rect(2, 2, 12, 12)
	writeMask(t, before, building)
	writeMask(t, after, building, image.Rect(40, 40, 50, 50))

	stats, err := diffMasks(before, after, 10)
	require.NoError(t, err)
	assert.Equal(t, types.ChangeStats{New: 1, Unchanged: 1, ActivityScore: 50, TemporalChangePct: 100}, stats)

	cmd := maskCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"diff", before, after})
	require.NoError(t, cmd.Execute())

	var printed types.ChangeStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, stats, printed)

	_, err = diffMasks(before, filepath.Join(dir, "missing.png"), 10)
	assert.Error(t, err)
}
