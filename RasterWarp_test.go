package Gowarp

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var unitGrid = [6]float64{0, 0.1, 0, 1, 0, -0.1}

func TestResampleAlgNames(t *testing.T) {
	want := []string{"NearestNeighbour", "Bilinear", "Cubic", "CubicSpline", "Lanczos",
		"Average", "Mode", "Max", "Min", "Med", "Q1", "Q3"}

	algs := ResampleAlgs()
	require.Len(t, algs, len(want))
	for i, a := range algs {
		assert.Equal(t, want[i], a.String())
		parsed, err := ParseResampleAlg(want[i])
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	a, err := ParseResampleAlg("GRA_cubicspline")
	require.NoError(t, err)
	assert.Equal(t, ResampleCubicSpline, a)

	_, err = ParseResampleAlg("sinc")
	assert.Error(t, err)

	assert.False(t, ResampleAlg(42).Valid())
	assert.Equal(t, "ResampleAlg(42)", ResampleAlg(42).String())
}

func TestResampleAlgMatchesGDAL(t *testing.T) {
	// GRA_* 常量值，7保留未用
	want := map[ResampleAlg]int{
		ResampleNearestNeighbour: 0, ResampleBilinear: 1, ResampleCubic: 2, ResampleCubicSpline: 3,
		ResampleLanczos: 4, ResampleAverage: 5, ResampleMode: 6, ResampleMax: 8,
		ResampleMin: 9, ResampleMed: 10, ResampleQ1: 11, ResampleQ3: 12,
	}
	for a, v := range want {
		c, err := a.cAlg()
		require.NoError(t, err)
		assert.Equal(t, v, int(c), a.String())
	}
}

func TestReprojectSameGrid(t *testing.T) {
	values := gradient(10, 10)
	src := newGeoDataset(t, 10, 10, 4326, unitGrid, values)
	dst := newGeoDataset(t, 10, 10, 4326, unitGrid, nil)

	require.NoError(t, ReprojectResampling(src, dst, ResampleNearestNeighbour))

	got, err := dst.ReadBand(1)
	require.NoError(t, err)
	assert.Equal(t, values, got)
}

func TestReprojectAllAlgorithms(t *testing.T) {
	src := newGeoDataset(t, 10, 10, 4326, unitGrid, constant(100, 7))
	for _, alg := range ResampleAlgs() {
		t.Run(alg.String(), func(t *testing.T) {
			dst := newGeoDataset(t, 5, 5, 4326, [6]float64{0, 0.2, 0, 1, 0, -0.2}, nil)
			require.NoError(t, ReprojectResampling(src, dst, alg))

			got, err := dst.ReadBand(1)
			require.NoError(t, err)
			assert.InDelta(t, 7.0, got[12], 1e-6)
		})
	}
}

func TestReprojectBilinearEquivalence(t *testing.T) {
	src := newGeoDataset(t, 10, 10, 4326, unitGrid, gradient(10, 10))
	info, err := SuggestedWarpOutput(src, mustWKT(t, EPSGWebMercator))
	require.NoError(t, err)

	a := newGeoDataset(t, info.Width, info.Height, EPSGWebMercator, info.GeoTransform, nil)
	b := newGeoDataset(t, info.Width, info.Height, EPSGWebMercator, info.GeoTransform, nil)

	require.NoError(t, Reproject(src, a))
	require.NoError(t, ReprojectResampling(src, b, ResampleBilinear))

	va, err := a.ReadBand(1)
	require.NoError(t, err)
	vb, err := b.ReadBand(1)
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestReprojectIdempotent(t *testing.T) {
	src := newGeoDataset(t, 10, 10, 4326, unitGrid, gradient(10, 10))
	info, err := SuggestedWarpOutput(src, mustWKT(t, EPSGWebMercator))
	require.NoError(t, err)
	dst := newGeoDataset(t, info.Width, info.Height, EPSGWebMercator, info.GeoTransform, nil)

	require.NoError(t, Reproject(src, dst))
	first, err := dst.ReadBand(1)
	require.NoError(t, err)

	require.NoError(t, dst.FillBand(1, 0))
	require.NoError(t, Reproject(src, dst))
	second, err := dst.ReadBand(1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, constant(len(first), 0), first)
}

func TestReprojectLeavesSourceUntouched(t *testing.T) {
	values := gradient(10, 10)
	src := newGeoDataset(t, 10, 10, 4326, unitGrid, values)
	dst := newGeoDataset(t, 7, 7, 4326, [6]float64{0.05, 0.13, 0, 0.95, 0, -0.13}, nil)

	for _, alg := range []ResampleAlg{ResampleBilinear, ResampleCubic, ResampleMode} {
		require.NoError(t, ReprojectResampling(src, dst, alg))
	}

	got, err := src.ReadBand(1)
	require.NoError(t, err)
	assert.Equal(t, values, got)
	gt, err := src.GeoTransform()
	require.NoError(t, err)
	assert.Equal(t, unitGrid, gt)
}

func TestReprojectClosedDestination(t *testing.T) {
	src := newGeoDataset(t, 4, 4, 4326, unitGrid, gradient(4, 4))
	dst, err := CreateMemDataset(4, 4, 1, Float64)
	require.NoError(t, err)
	require.NoError(t, dst.Close())

	err = Reproject(src, dst)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReprojectionFailed)

	var cplErr *CPLError
	require.ErrorAs(t, err, &cplErr)
	assert.NotEmpty(t, cplErr.Msg)
	assert.Contains(t, cplErr.Msg, "hDstDS")

	err = ReprojectResampling(nil, src, ResampleBilinear)
	assert.ErrorIs(t, err, ErrReprojectionFailed)
	assert.ErrorContains(t, err, "hSrcDS")
}

func TestReprojectWithoutGeoreferencing(t *testing.T) {
	src, err := CreateMemDataset(4, 4, 1, Float64)
	require.NoError(t, err)
	defer src.Close()
	dst, err := CreateMemDataset(4, 4, 1, Float64)
	require.NoError(t, err)
	defer dst.Close()

	err = Reproject(src, dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrReprojectionFailed))

	var cplErr *CPLError
	require.ErrorAs(t, err, &cplErr)
	assert.NotEmpty(t, cplErr.Msg)
	assert.GreaterOrEqual(t, cplErr.Class, CEFailure)
}

func TestReprojectInvalidOptions(t *testing.T) {
	src := newGeoDataset(t, 4, 4, 4326, unitGrid, nil)
	dst := newGeoDataset(t, 4, 4, 4326, unitGrid, nil)

	err := ReprojectResampling(src, dst, ResampleAlg(-1))
	assert.ErrorIs(t, err, ErrReprojectionFailed)

	opts := DefaultReprojectOptions()
	opts.MaxError = -0.5
	assert.ErrorIs(t, ReprojectWithOptions(src, dst, opts), ErrReprojectionFailed)
}

func TestReprojectSrcWKTOverride(t *testing.T) {
	// 源没有投影，由SrcWKT给出
	src := newGeoDataset(t, 10, 10, 0, unitGrid, constant(100, 7))
	info, err := SuggestedWarpOutput(newGeoDataset(t, 10, 10, 4326, unitGrid, nil), mustWKT(t, EPSGWebMercator))
	require.NoError(t, err)
	dst := newGeoDataset(t, info.Width, info.Height, EPSGWebMercator, info.GeoTransform, nil)

	opts := DefaultReprojectOptions()
	opts.SrcWKT = mustWKT(t, 4326)
	require.NoError(t, ReprojectWithOptions(src, dst, opts))

	bs, err := dst.BandStatistics(1)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, bs.Max, 1e-6)
}

func TestReprojectWarpOptions(t *testing.T) {
	src := newGeoDataset(t, 2, 2, 4326, [6]float64{0, 1, 0, 2, 0, -1}, constant(4, 9))
	dst := newGeoDataset(t, 4, 4, 4326, [6]float64{0, 1, 0, 4, 0, -1}, nil)

	opts := DefaultReprojectOptions()
	opts.Resample = ResampleNearestNeighbour
	opts.WarpOptions = map[string]string{"INIT_DEST": "5"}
	require.NoError(t, ReprojectWithOptions(src, dst, opts))

	got, err := dst.ReadBand(1)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got[0])
	assert.Equal(t, 9.0, got[3*4+0])
	assert.Equal(t, 9.0, got[2*4+1])
	assert.Equal(t, 5.0, got[3*4+3])
}

func mustWKT(t *testing.T, epsg int) string {
	t.Helper()
	wkt, err := EPSGToWKT(epsg)
	require.NoError(t, err)
	return wkt
}

// reprojectFromTemporary 源数据集只在本函数内可达，依赖finalizer回收
func reprojectFromTemporary(t *testing.T, dst *Dataset, size int) error {
	t.Helper()
	src, err := CreateMemDataset(size, size, 1, Float64)
	require.NoError(t, err)
	res := 1.0 / float64(size)
	require.NoError(t, src.SetGeoTransform([6]float64{0, res, 0, 1, 0, -res}))
	require.NoError(t, src.SetProjectionEPSG(4326))
	require.NoError(t, src.WriteBand(1, constant(size*size, 7)))
	return ReprojectResampling(src, dst, ResampleLanczos)
}

func TestReprojectUnreferencedSourceSurvivesGC(t *testing.T) {
	const size = 1024
	ref := newGeoDataset(t, size, size, 4326, [6]float64{0, 1.0 / size, 0, 1, 0, -1.0 / size}, nil)
	info, err := SuggestedWarpOutput(ref, mustWKT(t, EPSGWebMercator))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				runtime.GC()
			}
		}
	}()

	for i := 0; i < 3; i++ {
		dst := newGeoDataset(t, info.Width, info.Height, EPSGWebMercator, info.GeoTransform, nil)
		require.NoError(t, reprojectFromTemporary(t, dst, size))

		bs, err := dst.BandStatistics(1)
		require.NoError(t, err)
		assert.InDelta(t, 7.0, bs.Max, 1e-6)
	}
	close(done)
}
