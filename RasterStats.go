package Gowarp

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// BandStats 波段统计
type BandStats struct {
	Count      int // 像素总数
	ValidCount int // 非NoData像素数
	Min        float64
	Max        float64
	Mean       float64
	Median     float64
	StdDev     float64
}

// BandStatistics 统计第n波段，忽略NoData和NaN
func (ds *Dataset) BandStatistics(n int) (*BandStats, error) {
	values, err := ds.ReadBand(n)
	if err != nil {
		return nil, err
	}
	nodata, hasNoData, err := ds.NoData(n)
	if err != nil {
		return nil, err
	}
	return ComputeBandStats(values, nodata, hasNoData)
}

// ComputeBandStats 对像素值做统计
func ComputeBandStats(values []float64, nodata float64, hasNoData bool) (*BandStats, error) {
	valid := make(stats.Float64Data, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || (hasNoData && v == nodata) {
			continue
		}
		valid = append(valid, v)
	}

	bs := &BandStats{Count: len(values), ValidCount: len(valid)}
	if len(valid) == 0 {
		return bs, fmt.Errorf("band has no valid pixels")
	}

	var err error
	if bs.Min, err = valid.Min(); err != nil {
		return nil, err
	}
	if bs.Max, err = valid.Max(); err != nil {
		return nil, err
	}
	if bs.Mean, err = valid.Mean(); err != nil {
		return nil, err
	}
	if bs.Median, err = valid.Median(); err != nil {
		return nil, err
	}
	if bs.StdDev, err = valid.StandardDeviation(); err != nil {
		return nil, err
	}
	return bs, nil
}
