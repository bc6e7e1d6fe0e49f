package Gowarp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEPSGToWKT(t *testing.T) {
	wkt, err := EPSGToWKT(EPSGWebMercator)
	require.NoError(t, err)
	assert.Contains(t, wkt, "Pseudo-Mercator")

	_, err = EPSGToWKT(999999)
	assert.Error(t, err)
}

func TestSuggestedWarpOutput(t *testing.T) {
	src := newGeoDataset(t, 10, 10, 4326, unitGrid, nil)

	info, err := SuggestedWarpOutput(src, mustWKT(t, EPSGWebMercator))
	require.NoError(t, err)
	assert.Greater(t, info.Width, 0)
	assert.Greater(t, info.Height, 0)

	// 经度1度约111319.49米
	assert.InDelta(t, 0, info.Bounds.Min[0], 2000)
	assert.InDelta(t, 111319.49, info.Bounds.Max[0], 2000)
	assert.InDelta(t, 0, info.Bounds.Min[1], 2000)
	assert.InDelta(t, 111325.14, info.Bounds.Max[1], 2000)

	_, err = SuggestedWarpOutput(src, "")
	assert.Error(t, err)

	_, err = SuggestedWarpOutput(nil, mustWKT(t, 4326))
	assert.ErrorContains(t, err, "hSrcDS")
}

func TestReprojectToWebMercator(t *testing.T) {
	src := newGeoDataset(t, 10, 10, 4326, unitGrid, constant(100, 7))
	require.NoError(t, src.SetNoData(1, 0))

	dst, err := ReprojectToWebMercator(src, ResampleBilinear)
	require.NoError(t, err)
	defer dst.Close()

	assert.Contains(t, dst.Projection(), "Pseudo-Mercator")
	assert.Equal(t, src.BandCount(), dst.BandCount())

	nd, ok, err := dst.NoData(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.0, nd)

	bs, err := dst.BandStatistics(1)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, bs.Max, 1e-6)
	assert.InDelta(t, 7.0, bs.Median, 1e-6)
}

func TestReprojectFile(t *testing.T) {
	dir := t.TempDir()
	in := writeGeoTIFF(t, filepath.Join(dir, "in.tif"), 20, 20)
	out := filepath.Join(dir, "out.tif")

	info, err := ReprojectFile(in, out, "GTiff", EPSGWebMercator, ResampleCubic)
	require.NoError(t, err)
	assert.Greater(t, info.Width, 0)
	assert.Contains(t, info.DstWKT, "Pseudo-Mercator")

	ds, err := OpenDataset(out, false)
	require.NoError(t, err)
	defer ds.Close()
	assert.Equal(t, info.Width, ds.Width())
	assert.Equal(t, info.Height, ds.Height())
	assert.Contains(t, ds.Projection(), "Pseudo-Mercator")
}

func TestReprojectFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.tif")

	_, err := ReprojectFile(filepath.Join(dir, "nope.tif"), out, "GTiff", EPSGWebMercator, ResampleBilinear)
	require.Error(t, err)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCreateReprojectedRemovesOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.tif")
	src := newGeoDataset(t, 4, 4, 4326, unitGrid, nil)

	_, err := CreateReprojected(src, mustWKT(t, EPSGWebMercator), "GTiff", out, ResampleAlg(77))
	require.ErrorIs(t, err, ErrReprojectionFailed)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

// writeGeoTIFF 写一个WGS84下的梯度GeoTIFF
func writeGeoTIFF(t *testing.T, path string, width, height int) string {
	t.Helper()
	ds, err := CreateDataset("GTiff", path, width, height, 1, Float32)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{116, 0.01, 0, 40, 0, -0.01}))
	require.NoError(t, ds.SetProjectionEPSG(4326))
	require.NoError(t, ds.WriteBand(1, gradient(width, height)))
	require.NoError(t, ds.Close())
	return path
}

func TestCreateReprojectedWithSrcWKT(t *testing.T) {
	// 源没有投影，坐标系只由 SrcWKT 给出，建议网格也必须使用它
	src := newGeoDataset(t, 10, 10, 0, unitGrid, constant(100, 7))

	opts := DefaultReprojectOptions()
	opts.SrcWKT = mustWKT(t, 4326)
	dst, err := CreateReprojectedWithOptions(src, mustWKT(t, EPSGWebMercator), "MEM", "", opts)
	require.NoError(t, err)
	defer dst.Close()

	b, err := dst.Bounds()
	require.NoError(t, err)
	assert.InDelta(t, 111319.49, b.Max[0], 2000)
	assert.Contains(t, dst.Projection(), "Pseudo-Mercator")

	bs, err := dst.BandStatistics(1)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, bs.Max, 1e-6)
}

func TestReprojectFileReportsWrittenGrid(t *testing.T) {
	dir := t.TempDir()
	in := writeGeoTIFF(t, filepath.Join(dir, "in.tif"), 12, 12)
	out := filepath.Join(dir, "out.tif")

	info, err := ReprojectFile(in, out, "GTiff", EPSGWebMercator, ResampleBilinear)
	require.NoError(t, err)

	ds, err := OpenDataset(out, false)
	require.NoError(t, err)
	defer ds.Close()

	gt, err := ds.GeoTransform()
	require.NoError(t, err)
	assert.Equal(t, gt, info.GeoTransform)
	assert.NotEqual(t, [6]float64{}, info.GeoTransform)

	b, err := ds.Bounds()
	require.NoError(t, err)
	assert.Equal(t, b, info.Bounds)
}
