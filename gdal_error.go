// gdal_error.go
package Gowarp

/*
#include "osgeo_utils.h"
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
)

// CPLErrClass GDAL错误级别
type CPLErrClass int

const (
	CENone    CPLErrClass = C.CE_None
	CEDebug   CPLErrClass = C.CE_Debug
	CEWarning CPLErrClass = C.CE_Warning
	CEFailure CPLErrClass = C.CE_Failure
	CEFatal   CPLErrClass = C.CE_Fatal
)

// String implements Stringer
func (c CPLErrClass) String() string {
	switch c {
	case CENone:
		return "CE_None"
	case CEDebug:
		return "CE_Debug"
	case CEWarning:
		return "CE_Warning"
	case CEFailure:
		return "CE_Failure"
	case CEFatal:
		return "CE_Fatal"
	default:
		return fmt.Sprintf("CE_%d", int(c))
	}
}

// ErrReprojectionFailed 重投影失败，具体原因见包裹的 *CPLError
var ErrReprojectionFailed = errors.New("reprojection failed")

// CPLError GDAL最近一次记录的诊断信息
type CPLError struct {
	Class CPLErrClass // 错误级别
	Num   int         // CPLE_* 错误号
	Msg   string      // 诊断文本
}

func (e *CPLError) Error() string {
	return e.Msg
}

// lastCPLError 读取当前线程的last-error，rv为调用返回的状态
// 必须与失败的调用在同一OS线程上执行
func lastCPLError(rv C.CPLErr) *CPLError {
	e := &CPLError{
		Class: CPLErrClass(C.CPLGetLastErrorType()),
		Num:   int(C.CPLGetLastErrorNo()),
		Msg:   C.GoString(C.CPLGetLastErrorMsg()),
	}
	if e.Class == CENone {
		e.Class = CPLErrClass(rv)
	}
	if e.Msg == "" {
		e.Msg = fmt.Sprintf("gdal call failed with %s (no diagnostic recorded)", CPLErrClass(rv))
	}
	return e
}

// cplCall 执行一次GDAL调用并把失败翻译成 *CPLError
// GDAL的错误上下文是线程私有的：调用、读取、清除都在锁定的线程上完成
func cplCall(fn func() C.CPLErr) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	C.gowarpPushQuietHandler()
	defer C.CPLPopErrorHandler()

	C.CPLErrorReset()
	defer C.CPLErrorReset()

	rv := fn()
	if rv == C.CE_None {
		return nil
	}
	return lastCPLError(rv)
}

// cplCallHandle 与cplCall相同，用于返回句柄的调用，nil句柄视为失败
func cplCallHandle[T comparable](fn func() T) (T, error) {
	var h T
	err := cplCall(func() C.CPLErr {
		h = fn()
		var zero T
		if h == zero {
			return C.CE_Failure
		}
		return C.CE_None
	})
	return h, err
}
