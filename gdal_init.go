// gdal_init.go
package Gowarp

/*
#include "osgeo_utils.h"

#cgo pkg-config: gdal
*/
import "C"

import (
	"sync"
	"unsafe"
)

var (
	gdalInitOnce sync.Once
	// gdalMutex 保护驱动注册表和全局配置项
	gdalMutex sync.Mutex
)

// InitializeGDAL 注册所有GDAL驱动，可重复调用
func InitializeGDAL() {
	gdalInitOnce.Do(func() {
		gdalMutex.Lock()
		C.GDALAllRegister()
		gdalMutex.Unlock()
	})
}

// SetConfigOption 设置GDAL配置项，value为空时清除
func SetConfigOption(key, value string) {
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))

	gdalMutex.Lock()
	defer gdalMutex.Unlock()
	if value == "" {
		C.CPLSetConfigOption(cKey, nil)
		return
	}
	cValue := C.CString(value)
	defer C.free(unsafe.Pointer(cValue))
	C.CPLSetConfigOption(cKey, cValue)
}

// GetConfigOption 读取GDAL配置项
func GetConfigOption(key, defaultValue string) string {
	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))
	cDefault := C.CString(defaultValue)
	defer C.free(unsafe.Pointer(cDefault))

	gdalMutex.Lock()
	defer gdalMutex.Unlock()
	return C.GoString(C.CPLGetConfigOption(cKey, cDefault))
}

// cStringList 把 key=value 转成GDAL字符串列表，调用方负责CSLDestroy
func cStringList(kv map[string]string) **C.char {
	var list **C.char
	for k, v := range kv {
		cKey := C.CString(k)
		cValue := C.CString(v)
		list = C.CSLSetNameValue(list, cKey, cValue)
		C.free(unsafe.Pointer(cKey))
		C.free(unsafe.Pointer(cValue))
	}
	return list
}

// cOptionList 把 "KEY=VALUE" 形式的选项转成GDAL字符串列表
func cOptionList(opts []string) **C.char {
	var list **C.char
	for _, opt := range opts {
		cOpt := C.CString(opt)
		list = C.CSLAddString(list, cOpt)
		C.free(unsafe.Pointer(cOpt))
	}
	return list
}
