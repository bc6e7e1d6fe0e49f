// RasterWarp.go
package Gowarp

/*
#include "osgeo_utils.h"
*/
import "C"

import (
	"fmt"
	"runtime"
	"strings"
	"unsafe"
)

// ==================== 重投影 ====================

// ResampleAlg 重投影时使用的重采样算法
type ResampleAlg int

const (
	ResampleNearestNeighbour ResampleAlg = iota // 最近邻（取一个输入像素）
	ResampleBilinear                            // 双线性（2x2核）
	ResampleCubic                               // 三次卷积（4x4核）
	ResampleCubicSpline                         // 三次B样条（4x4核）
	ResampleLanczos                             // Lanczos加窗sinc（6x6核）
	ResampleAverage                             // 所有非NoData贡献像素的均值
	ResampleMode                                // 出现次数最多的值
	ResampleMax                                 // 最大值
	ResampleMin                                 // 最小值
	ResampleMed                                 // 中位数
	ResampleQ1                                  // 第一四分位数
	ResampleQ3                                  // 第三四分位数
)

// resampleAlgTable 与GDAL GRA_* 常量一一对应，新增算法时同时扩展常量和此表
var resampleAlgTable = [...]struct {
	name string
	gra  C.GDALResampleAlg
}{
	ResampleNearestNeighbour: {"NearestNeighbour", C.GRA_NearestNeighbour},
	ResampleBilinear:         {"Bilinear", C.GRA_Bilinear},
	ResampleCubic:            {"Cubic", C.GRA_Cubic},
	ResampleCubicSpline:      {"CubicSpline", C.GRA_CubicSpline},
	ResampleLanczos:          {"Lanczos", C.GRA_Lanczos},
	ResampleAverage:          {"Average", C.GRA_Average},
	ResampleMode:             {"Mode", C.GRA_Mode},
	ResampleMax:              {"Max", C.GRA_Max},
	ResampleMin:              {"Min", C.GRA_Min},
	ResampleMed:              {"Med", C.GRA_Med},
	ResampleQ1:               {"Q1", C.GRA_Q1},
	ResampleQ3:               {"Q3", C.GRA_Q3},
}

// ResampleAlgs 全部算法，按GDAL常量顺序
func ResampleAlgs() []ResampleAlg {
	algs := make([]ResampleAlg, len(resampleAlgTable))
	for i := range resampleAlgTable {
		algs[i] = ResampleAlg(i)
	}
	return algs
}

// Valid 是否为已知算法
func (a ResampleAlg) Valid() bool {
	return a >= 0 && int(a) < len(resampleAlgTable)
}

// String 返回GDAL中的算法名
func (a ResampleAlg) String() string {
	if !a.Valid() {
		return fmt.Sprintf("ResampleAlg(%d)", int(a))
	}
	return resampleAlgTable[a].name
}

// ParseResampleAlg 按名称解析算法，忽略大小写，兼容 "GRA_" 前缀
func ParseResampleAlg(name string) (ResampleAlg, error) {
	n := strings.TrimPrefix(strings.TrimSpace(name), "GRA_")
	for i, e := range resampleAlgTable {
		if strings.EqualFold(e.name, n) {
			return ResampleAlg(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resampling algorithm %q", name)
}

func (a ResampleAlg) cAlg() (C.GDALResampleAlg, error) {
	if !a.Valid() {
		return 0, fmt.Errorf("invalid resampling algorithm %d", int(a))
	}
	return resampleAlgTable[a].gra, nil
}

// ReprojectOptions 重投影参数
type ReprojectOptions struct {
	Resample    ResampleAlg       // 重采样算法
	MemoryLimit float64           // 变形内存上限（字节），0为GDAL默认
	MaxError    float64           // 最大几何误差（像素），0为精确计算不做近似
	SrcWKT      string            // 覆盖源数据集自带的坐标系，空为不覆盖
	DstWKT      string            // 覆盖目标数据集自带的坐标系，空为不覆盖
	WarpOptions map[string]string // GDAL变形选项，如 NUM_THREADS、INIT_DEST
}

// DefaultReprojectOptions 与 Reproject 相同的参数
func DefaultReprojectOptions() *ReprojectOptions {
	return &ReprojectOptions{
		Resample:    ResampleBilinear,
		MemoryLimit: 0,
		MaxError:    0,
	}
}

// Reproject 把source重投影到destiny的坐标系和网格
// 使用双线性重采样，变换精确计算
func Reproject(source, destiny *Dataset) error {
	return ReprojectWithOptions(source, destiny, DefaultReprojectOptions())
}

// ReprojectResampling 与 Reproject 相同，但使用指定的重采样算法
func ReprojectResampling(source, destiny *Dataset, resampling ResampleAlg) error {
	opts := DefaultReprojectOptions()
	opts.Resample = resampling
	return ReprojectWithOptions(source, destiny, opts)
}

// ReprojectWithOptions 调用GDALReprojectImage
// 阻塞直到GDAL完成，失败时返回的错误满足 errors.Is(err, ErrReprojectionFailed)
// 并可用 errors.As 取得 *CPLError
func ReprojectWithOptions(source, destiny *Dataset, opts *ReprojectOptions) error {
	if opts == nil {
		opts = DefaultReprojectOptions()
	}
	alg, err := opts.Resample.cAlg()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReprojectionFailed, err)
	}
	if opts.MemoryLimit < 0 || opts.MaxError < 0 {
		return fmt.Errorf("%w: memory limit and max error must not be negative", ErrReprojectionFailed)
	}

	var cSrcWKT, cDstWKT *C.char
	if opts.SrcWKT != "" {
		cSrcWKT = C.CString(opts.SrcWKT)
		defer C.free(unsafe.Pointer(cSrcWKT))
	}
	if opts.DstWKT != "" {
		cDstWKT = C.CString(opts.DstWKT)
		defer C.free(unsafe.Pointer(cDstWKT))
	}

	var cWarpOpts **C.char
	if len(opts.WarpOptions) > 0 {
		cWarpOpts = cStringList(opts.WarpOptions)
		defer C.CSLDestroy(cWarpOpts)
	}

	hSrc, hDst := source.cPtr(), destiny.cPtr()
	err = cplCall(func() C.CPLErr {
		return C.gowarpReprojectImage(hSrc, cSrcWKT, hDst, cDstWKT, alg,
			C.double(opts.MemoryLimit), C.double(opts.MaxError), cWarpOpts)
	})
	runtime.KeepAlive(source)
	runtime.KeepAlive(destiny)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReprojectionFailed, err)
	}
	return nil
}
