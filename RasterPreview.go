package Gowarp

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Preview 渲染快视图：单波段为灰度，3波段及以上取前3波段为RGB
// 每个波段按自身最小/最大值线性拉伸，结果缩放到 maxSize×maxSize 以内
func (ds *Dataset) Preview(maxSize int) (image.Image, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("invalid preview size %d", maxSize)
	}
	if ds.Closed() {
		return nil, ErrDatasetClosed
	}

	bands := 1
	if ds.bandCount >= 3 {
		bands = 3
	}
	channels := make([][]uint8, bands)
	for i := 0; i < bands; i++ {
		values, err := ds.ReadBand(i + 1)
		if err != nil {
			return nil, err
		}
		nodata, hasNoData, err := ds.NoData(i + 1)
		if err != nil {
			return nil, err
		}
		channels[i] = stretchToByte(values, nodata, hasNoData)
	}

	img := renderChannels(channels, ds.width, ds.height)
	return imaging.Fit(img, maxSize, maxSize, imaging.Lanczos), nil
}

// SavePreview 保存快视图，格式由扩展名决定
func (ds *Dataset) SavePreview(path string, maxSize int) error {
	img, err := ds.Preview(maxSize)
	if err != nil {
		return err
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save preview %s: %w", path, err)
	}
	return nil
}

// stretchToByte 线性拉伸到0-255，NoData为0
func stretchToByte(values []float64, nodata float64, hasNoData bool) []uint8 {
	out := make([]uint8, len(values))
	bs, err := ComputeBandStats(values, nodata, hasNoData)
	if err != nil {
		return out
	}
	span := bs.Max - bs.Min
	for i, v := range values {
		if hasNoData && v == nodata {
			continue
		}
		if span == 0 {
			out[i] = 255
			continue
		}
		s := (v - bs.Min) / span * 255
		if s < 0 || math.IsNaN(s) {
			s = 0
		}
		if s > 255 {
			s = 255
		}
		out[i] = uint8(s + 0.5)
	}
	return out
}

func renderChannels(channels [][]uint8, width, height int) image.Image {
	if len(channels) == 1 {
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, channels[0])
		return img
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			img.SetNRGBA(x, y, color.NRGBA{R: channels[0][i], G: channels[1][i], B: channels[2][i], A: 255})
		}
	}
	return img
}
