// gdal_pool.go
package Gowarp

import (
	"context"
	"log"
	"runtime"
	"sync"
)

// GDALWorkerPool GDAL工作池 - 控制并发数量
type GDALWorkerPool struct {
	semaphore chan struct{}
	size      int
}

var (
	gdalPool     *GDALWorkerPool
	gdalPoolOnce sync.Once
)

// defaultPoolSize CPU核心数，限制在 [2,8]，每个重投影本身可能再开 NUM_THREADS
func defaultPoolSize() int {
	size := runtime.NumCPU()
	if size < 2 {
		size = 2
	}
	if size > 8 {
		size = 8
	}
	return size
}

// NewGDALWorkerPool 创建指定大小的工作池，size<=0时按CPU核心数
func NewGDALWorkerPool(size int) *GDALWorkerPool {
	if size <= 0 {
		size = defaultPoolSize()
	}
	return &GDALWorkerPool{
		semaphore: make(chan struct{}, size),
		size:      size,
	}
}

// GetGDALPool 获取全局GDAL工作池（单例），大小取自 MainConfig.Workers
func GetGDALPool() *GDALWorkerPool {
	gdalPoolOnce.Do(func() {
		gdalPool = NewGDALWorkerPool(MainConfig.Workers)
		log.Printf("GDAL工作池已启动，工作槽数量: %d", gdalPool.size)
	})
	return gdalPool
}

// Size 工作槽数量
func (p *GDALWorkerPool) Size() int { return p.size }

// Acquire 获取工作槽，ctx取消时返回ctx.Err()
func (p *GDALWorkerPool) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放工作槽
func (p *GDALWorkerPool) Release() {
	<-p.semaphore
}

// Execute 在工作池中执行GDAL操作
// 工作槽被占用时阻塞，fn 在锁定的OS线程上运行
func (p *GDALWorkerPool) Execute(ctx context.Context, fn func() error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return fn()
}
