// RasterDataset.go
package Gowarp

/*
#include "osgeo_utils.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"unsafe"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// DataType 像素数据类型
type DataType int

const (
	Unknown DataType = C.GDT_Unknown
	Byte    DataType = C.GDT_Byte
	UInt16  DataType = C.GDT_UInt16
	Int16   DataType = C.GDT_Int16
	UInt32  DataType = C.GDT_UInt32
	Int32   DataType = C.GDT_Int32
	Float32 DataType = C.GDT_Float32
	Float64 DataType = C.GDT_Float64
)

// String implements Stringer
func (dt DataType) String() string {
	return C.GoString(C.GDALGetDataTypeName(C.GDALDataType(dt)))
}

// ErrDatasetClosed 数据集已关闭
var ErrDatasetClosed = errors.New("dataset is closed")

// Dataset 栅格数据集，持有GDAL句柄的生命周期
// 同一个Dataset不能被多个goroutine同时使用
// 取出句柄做C调用的函数必须在调用结束后 runtime.KeepAlive，否则finalizer可能提前关闭句柄
type Dataset struct {
	handle    C.GDALDatasetH
	filePath  string
	width     int
	height    int
	bandCount int
}

// OpenDataset 打开栅格文件，update为true时以可写方式打开
func OpenDataset(path string, update bool) (*Dataset, error) {
	InitializeGDAL()

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	access := C.GDALAccess(C.GA_ReadOnly)
	if update {
		access = C.GA_Update
	}

	handle, err := cplCallHandle(func() C.GDALDatasetH {
		return C.GDALOpen(cPath, access)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return newDataset(handle, path), nil
}

// CreateDataset 用指定驱动创建栅格数据集
// creationOptions 形如 "TILED=YES"
func CreateDataset(driver, path string, width, height, bands int, dt DataType, creationOptions ...string) (*Dataset, error) {
	if width <= 0 || height <= 0 || bands <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%dx%d", width, height, bands)
	}
	InitializeGDAL()

	cDriver := C.CString(driver)
	defer C.free(unsafe.Pointer(cDriver))
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	hDriver := C.GDALGetDriverByName(cDriver)
	if hDriver == nil {
		return nil, fmt.Errorf("%s driver not available", driver)
	}

	cOpts := cOptionList(creationOptions)
	defer C.CSLDestroy(cOpts)

	handle, err := cplCallHandle(func() C.GDALDatasetH {
		return C.GDALCreate(hDriver, cPath, C.int(width), C.int(height), C.int(bands), C.GDALDataType(dt), cOpts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s dataset %q: %w", driver, path, err)
	}
	return newDataset(handle, path), nil
}

// CreateMemDataset 创建内存数据集
func CreateMemDataset(width, height, bands int, dt DataType) (*Dataset, error) {
	return CreateDataset("MEM", "", width, height, bands, dt)
}

func newDataset(handle C.GDALDatasetH, path string) *Dataset {
	ds := &Dataset{
		handle:    handle,
		filePath:  path,
		width:     int(C.GDALGetRasterXSize(handle)),
		height:    int(C.GDALGetRasterYSize(handle)),
		bandCount: int(C.GDALGetRasterCount(handle)),
	}
	runtime.SetFinalizer(ds, (*Dataset).Close)
	return ds
}

// Close 关闭数据集，重复调用无副作用
func (ds *Dataset) Close() error {
	if ds == nil || ds.handle == nil {
		return nil
	}
	handle := ds.handle
	ds.handle = nil
	runtime.SetFinalizer(ds, nil)
	return cplCall(func() C.CPLErr {
		C.GDALClose(handle)
		if C.CPLGetLastErrorType() >= C.CE_Failure {
			return C.CE_Failure
		}
		return C.CE_None
	})
}

// cPtr 返回底层句柄，nil或已关闭时返回nil
func (ds *Dataset) cPtr() C.GDALDatasetH {
	if ds == nil {
		return nil
	}
	return ds.handle
}

// Path 数据集路径，内存数据集为空
func (ds *Dataset) Path() string { return ds.filePath }

func (ds *Dataset) Width() int { return ds.width }

func (ds *Dataset) Height() int { return ds.height }

func (ds *Dataset) BandCount() int { return ds.bandCount }

// Closed 是否已关闭
func (ds *Dataset) Closed() bool { return ds.cPtr() == nil }

// GeoTransform 获取仿射变换参数
func (ds *Dataset) GeoTransform() ([6]float64, error) {
	defer runtime.KeepAlive(ds)
	var gt [6]float64
	if ds.Closed() {
		return gt, ErrDatasetClosed
	}
	var cgt [6]C.double
	err := cplCall(func() C.CPLErr {
		return C.GDALGetGeoTransform(ds.handle, &cgt[0])
	})
	if err != nil {
		return gt, fmt.Errorf("failed to get geotransform: %w", err)
	}
	for i := range cgt {
		gt[i] = float64(cgt[i])
	}
	return gt, nil
}

// SetGeoTransform 设置仿射变换参数
func (ds *Dataset) SetGeoTransform(gt [6]float64) error {
	defer runtime.KeepAlive(ds)
	if ds.Closed() {
		return ErrDatasetClosed
	}
	var cgt [6]C.double
	for i := range gt {
		cgt[i] = C.double(gt[i])
	}
	if err := cplCall(func() C.CPLErr {
		return C.GDALSetGeoTransform(ds.handle, &cgt[0])
	}); err != nil {
		return fmt.Errorf("failed to set geotransform: %w", err)
	}
	return nil
}

// Projection 投影WKT，没有投影时为空
func (ds *Dataset) Projection() string {
	defer runtime.KeepAlive(ds)
	if ds.Closed() {
		return ""
	}
	return C.GoString(C.GDALGetProjectionRef(ds.handle))
}

// SetProjection 设置投影WKT
func (ds *Dataset) SetProjection(wkt string) error {
	defer runtime.KeepAlive(ds)
	if ds.Closed() {
		return ErrDatasetClosed
	}
	cWKT := C.CString(wkt)
	defer C.free(unsafe.Pointer(cWKT))
	if err := cplCall(func() C.CPLErr {
		return C.GDALSetProjection(ds.handle, cWKT)
	}); err != nil {
		return fmt.Errorf("failed to set projection: %w", err)
	}
	return nil
}

// SetProjectionEPSG 用EPSG编码设置投影
func (ds *Dataset) SetProjectionEPSG(code int) error {
	wkt, err := EPSGToWKT(code)
	if err != nil {
		return err
	}
	return ds.SetProjection(wkt)
}

// HasGeoInfo 是否同时有地理变换和投影
func (ds *Dataset) HasGeoInfo() bool {
	if _, err := ds.GeoTransform(); err != nil {
		return false
	}
	return ds.Projection() != ""
}

// Bounds 数据集在自身坐标系下的范围
func (ds *Dataset) Bounds() (orb.Bound, error) {
	gt, err := ds.GeoTransform()
	if err != nil {
		return orb.Bound{}, err
	}
	return geoTransformBounds(gt, ds.width, ds.height), nil
}

// geoTransformBounds 由仿射变换计算四角外包框
func geoTransformBounds(gt [6]float64, width, height int) orb.Bound {
	w, h := float64(width), float64(height)
	corners := [4][2]float64{{0, 0}, {w, 0}, {w, h}, {0, h}}

	b := orb.Bound{Min: orb.Point{gt[0], gt[3]}, Max: orb.Point{gt[0], gt[3]}}
	for _, c := range corners {
		x := gt[0] + c[0]*gt[1] + c[1]*gt[2]
		y := gt[3] + c[0]*gt[4] + c[1]*gt[5]
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// Footprint 数据集范围的GeoJSON要素
func (ds *Dataset) Footprint() (*geojson.Feature, error) {
	bound, err := ds.Bounds()
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(bound.ToPolygon())
	f.Properties["width"] = ds.width
	f.Properties["height"] = ds.height
	f.Properties["bands"] = ds.bandCount
	if ds.filePath != "" {
		f.Properties["path"] = ds.filePath
	}
	if proj := ds.Projection(); proj != "" {
		f.Properties["projection"] = proj
	}
	return f, nil
}

func (ds *Dataset) band(n int) (C.GDALRasterBandH, error) {
	if ds.Closed() {
		return nil, ErrDatasetClosed
	}
	if n < 1 || n > ds.bandCount {
		return nil, fmt.Errorf("band %d out of range [1,%d]", n, ds.bandCount)
	}
	return C.GDALGetRasterBand(ds.handle, C.int(n)), nil
}

// DataType 波段数据类型
func (ds *Dataset) DataType(n int) (DataType, error) {
	defer runtime.KeepAlive(ds)
	b, err := ds.band(n)
	if err != nil {
		return Unknown, err
	}
	return DataType(C.GDALGetRasterDataType(b)), nil
}

// ReadBand 按行读取整个波段为float64
func (ds *Dataset) ReadBand(n int) ([]float64, error) {
	defer runtime.KeepAlive(ds)
	b, err := ds.band(n)
	if err != nil {
		return nil, err
	}
	buf := make([]float64, ds.width*ds.height)
	if err := cplCall(func() C.CPLErr {
		return C.GDALRasterIO(b, C.GF_Read, 0, 0, C.int(ds.width), C.int(ds.height),
			unsafe.Pointer(&buf[0]), C.int(ds.width), C.int(ds.height), C.GDT_Float64, 0, 0)
	}); err != nil {
		return nil, fmt.Errorf("failed to read band %d: %w", n, err)
	}
	return buf, nil
}

// WriteBand 写入整个波段，values长度必须等于 width*height
func (ds *Dataset) WriteBand(n int, values []float64) error {
	defer runtime.KeepAlive(ds)
	b, err := ds.band(n)
	if err != nil {
		return err
	}
	if len(values) != ds.width*ds.height {
		return fmt.Errorf("band %d expects %d values, got %d", n, ds.width*ds.height, len(values))
	}
	if err := cplCall(func() C.CPLErr {
		return C.GDALRasterIO(b, C.GF_Write, 0, 0, C.int(ds.width), C.int(ds.height),
			unsafe.Pointer(&values[0]), C.int(ds.width), C.int(ds.height), C.GDT_Float64, 0, 0)
	}); err != nil {
		return fmt.Errorf("failed to write band %d: %w", n, err)
	}
	return nil
}

// FillBand 用常量填充波段
func (ds *Dataset) FillBand(n int, value float64) error {
	defer runtime.KeepAlive(ds)
	b, err := ds.band(n)
	if err != nil {
		return err
	}
	if err := cplCall(func() C.CPLErr {
		return C.GDALFillRaster(b, C.double(value), 0)
	}); err != nil {
		return fmt.Errorf("failed to fill band %d: %w", n, err)
	}
	return nil
}

// SetNoData 设置波段NoData值
func (ds *Dataset) SetNoData(n int, value float64) error {
	defer runtime.KeepAlive(ds)
	b, err := ds.band(n)
	if err != nil {
		return err
	}
	if err := cplCall(func() C.CPLErr {
		return C.GDALSetRasterNoDataValue(b, C.double(value))
	}); err != nil {
		return fmt.Errorf("failed to set nodata on band %d: %w", n, err)
	}
	return nil
}

// NoData 波段NoData值，ok为false表示未设置
func (ds *Dataset) NoData(n int) (value float64, ok bool, err error) {
	defer runtime.KeepAlive(ds)
	b, err := ds.band(n)
	if err != nil {
		return 0, false, err
	}
	var has C.int
	v := C.GDALGetRasterNoDataValue(b, &has)
	return float64(v), has != 0, nil
}

// Flush 把缓存写回磁盘
func (ds *Dataset) Flush() {
	defer runtime.KeepAlive(ds)
	if ds.Closed() {
		return
	}
	C.GDALFlushCache(ds.handle)
}

// String 简要描述
func (ds *Dataset) String() string {
	var sb strings.Builder
	if ds.filePath != "" {
		sb.WriteString(ds.filePath)
	} else {
		sb.WriteString("<mem>")
	}
	fmt.Fprintf(&sb, " %dx%dx%d", ds.width, ds.height, ds.bandCount)
	if ds.Closed() {
		sb.WriteString(" (closed)")
	}
	return sb.String()
}
