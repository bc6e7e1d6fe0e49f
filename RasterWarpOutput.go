// RasterWarpOutput.go
package Gowarp

/*
#include "osgeo_utils.h"
*/
import "C"

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"github.com/paulmach/orb"
)

// EPSGWebMercator Web墨卡托
const EPSGWebMercator = 3857

// WarpOutputInfo 重投影建议输出
type WarpOutputInfo struct {
	GeoTransform [6]float64
	Width        int
	Height       int
	Bounds       orb.Bound // 目标坐标系下的范围
	DstWKT       string
}

// EPSGToWKT EPSG编码转WKT
func EPSGToWKT(code int) (string, error) {
	InitializeGDAL()

	var cWKT *C.char
	err := cplCall(func() C.CPLErr {
		cWKT = C.gowarpEPSGToWKT(C.int(code))
		if cWKT == nil {
			return C.CE_Failure
		}
		return C.CE_None
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve EPSG:%d: %w", code, err)
	}
	defer C.gowarpFree(unsafe.Pointer(cWKT))
	return C.GoString(cWKT), nil
}

// SuggestedWarpOutput 计算把src重投影到dstWKT时的输出网格
func SuggestedWarpOutput(src *Dataset, dstWKT string) (*WarpOutputInfo, error) {
	return suggestedWarpOutput(src, "", dstWKT)
}

// suggestedWarpOutput srcWKT非空时覆盖源坐标系，与 ReprojectOptions.SrcWKT 一致
func suggestedWarpOutput(src *Dataset, srcWKT, dstWKT string) (*WarpOutputInfo, error) {
	if dstWKT == "" {
		return nil, fmt.Errorf("destination WKT is empty")
	}
	cWKT := C.CString(dstWKT)
	defer C.free(unsafe.Pointer(cWKT))

	var cSrcWKT *C.char
	if srcWKT != "" {
		cSrcWKT = C.CString(srcWKT)
		defer C.free(unsafe.Pointer(cSrcWKT))
	}

	var cgt [6]C.double
	var pixels, lines C.int
	hSrc := src.cPtr()
	err := cplCall(func() C.CPLErr {
		return C.gowarpSuggestedWarpOutput(hSrc, cSrcWKT, cWKT, &cgt[0], &pixels, &lines)
	})
	runtime.KeepAlive(src)
	if err != nil {
		return nil, fmt.Errorf("failed to compute warp output: %w", err)
	}

	info := &WarpOutputInfo{
		Width:  int(pixels),
		Height: int(lines),
		DstWKT: dstWKT,
	}
	for i := range cgt {
		info.GeoTransform[i] = float64(cgt[i])
	}
	info.Bounds = geoTransformBounds(info.GeoTransform, info.Width, info.Height)
	return info, nil
}

// CreateReprojected 按建议网格创建目标数据集并执行重投影
// 目标继承源的波段数、数据类型和NoData，失败时删除已创建的目标文件
func CreateReprojected(src *Dataset, dstWKT, driver, path string, alg ResampleAlg) (*Dataset, error) {
	opts := DefaultReprojectOptions()
	opts.Resample = alg
	return CreateReprojectedWithOptions(src, dstWKT, driver, path, opts)
}

// CreateReprojectedWithOptions 与 CreateReprojected 相同，目标坐标系由 dstWKT 决定，不使用 opts.DstWKT
func CreateReprojectedWithOptions(src *Dataset, dstWKT, driver, path string, opts *ReprojectOptions) (*Dataset, error) {
	warpOpts := DefaultReprojectOptions()
	if opts != nil {
		*warpOpts = *opts
	}
	warpOpts.DstWKT = ""
	if src.Closed() {
		return nil, ErrDatasetClosed
	}
	info, err := suggestedWarpOutput(src, warpOpts.SrcWKT, dstWKT)
	if err != nil {
		return nil, err
	}

	dt, err := src.DataType(1)
	if err != nil {
		return nil, err
	}

	dst, err := CreateDataset(driver, path, info.Width, info.Height, src.BandCount(), dt)
	if err != nil {
		return nil, err
	}

	cleanup := func() {
		dst.Close()
		if path != "" {
			os.Remove(path)
		}
	}

	if err := dst.SetGeoTransform(info.GeoTransform); err != nil {
		cleanup()
		return nil, err
	}
	if err := dst.SetProjection(dstWKT); err != nil {
		cleanup()
		return nil, err
	}
	for i := 1; i <= src.BandCount(); i++ {
		v, ok, err := src.NoData(i)
		if err != nil {
			cleanup()
			return nil, err
		}
		if !ok {
			continue
		}
		if err := dst.SetNoData(i, v); err != nil {
			cleanup()
			return nil, err
		}
	}

	if err := ReprojectWithOptions(src, dst, warpOpts); err != nil {
		cleanup()
		return nil, err
	}
	if path != "" {
		dst.Flush()
	}
	return dst, nil
}

// ReprojectToEPSG 重投影到指定EPSG，结果为内存数据集
func ReprojectToEPSG(src *Dataset, epsg int, alg ResampleAlg) (*Dataset, error) {
	wkt, err := EPSGToWKT(epsg)
	if err != nil {
		return nil, err
	}
	return CreateReprojected(src, wkt, "MEM", "", alg)
}

// ReprojectToWebMercator 重投影到Web墨卡托
func ReprojectToWebMercator(src *Dataset, alg ResampleAlg) (*Dataset, error) {
	return ReprojectToEPSG(src, EPSGWebMercator, alg)
}

// ReprojectFile 打开输入文件，重投影到EPSG并写入输出文件
func ReprojectFile(inputPath, outputPath, driver string, epsg int, alg ResampleAlg) (*WarpOutputInfo, error) {
	opts := DefaultReprojectOptions()
	opts.Resample = alg
	return reprojectFile(inputPath, outputPath, driver, epsg, opts)
}

func reprojectFile(inputPath, outputPath, driver string, epsg int, opts *ReprojectOptions) (*WarpOutputInfo, error) {
	src, err := OpenDataset(inputPath, false)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	wkt, err := EPSGToWKT(epsg)
	if err != nil {
		return nil, err
	}

	dst, err := CreateReprojectedWithOptions(src, wkt, driver, outputPath, opts)
	if err != nil {
		return nil, err
	}
	gt, err := dst.GeoTransform()
	if err != nil {
		dst.Close()
		os.Remove(outputPath)
		return nil, err
	}
	info := &WarpOutputInfo{
		GeoTransform: gt,
		Width:        dst.Width(),
		Height:       dst.Height(),
		Bounds:       geoTransformBounds(gt, dst.Width(), dst.Height()),
		DstWKT:       wkt,
	}
	if err := dst.Close(); err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("failed to close %s: %w", outputPath, err)
	}
	return info, nil
}
