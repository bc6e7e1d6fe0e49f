package Gowarp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// ==================== 批量重投影 ====================

// ReprojectBatchConfig 批量重投影配置
type ReprojectBatchConfig struct {
	InputPaths   []string    // 输入文件路径
	OutputPaths  []string    // 输出文件路径
	OutputFormat string      // 输出驱动，默认GTiff
	DstEPSG      int         // 目标坐标系
	Resample     ResampleAlg // 重采样算法
	Concurrency  int         // 并发数，0为使用全局工作池
	Log          *WarpLog    // 任务日志，为nil时使用 MainConfig.LogDB
	ComputeStats bool        // 是否统计输出第1波段，统计失败时Stats为nil，不算任务失败
}

// ReprojectBatchResult 批量重投影结果
type ReprojectBatchResult struct {
	TaskID     string
	InputPath  string
	OutputPath string
	Output     *WarpOutputInfo
	Stats      *BandStats
	Error      error
}

// ReprojectBatch 批量执行重投影，单个任务失败不影响其余任务
func ReprojectBatch(ctx context.Context, config *ReprojectBatchConfig) []ReprojectBatchResult {
	if config == nil || len(config.InputPaths) == 0 {
		return nil
	}
	if len(config.InputPaths) != len(config.OutputPaths) {
		return []ReprojectBatchResult{{Error: fmt.Errorf("input and output paths count mismatch")}}
	}
	if !config.Resample.Valid() {
		return []ReprojectBatchResult{{Error: fmt.Errorf("invalid resampling algorithm %d", int(config.Resample))}}
	}
	// 调用方的配置只读，同一配置可并发复用
	cfg := *config
	config = &cfg
	if config.OutputFormat == "" {
		config.OutputFormat = "GTiff"
	}

	if config.Log == nil && MainConfig.LogDB != "" {
		wl, err := OpenWarpLog(MainConfig.LogDB)
		if err != nil {
			log.Printf("打开任务日志失败 %s: %v", MainConfig.LogDB, err)
		} else {
			defer wl.Close()
			config.Log = wl
		}
	}

	opts := &ReprojectOptions{
		Resample:    config.Resample,
		MemoryLimit: MainConfig.MemoryLimitBytes(),
		WarpOptions: MainConfig.WarpOptions(),
	}

	pool := GetGDALPool()
	if config.Concurrency > 0 {
		pool = NewGDALWorkerPool(config.Concurrency)
	}

	results := make([]ReprojectBatchResult, len(config.InputPaths))
	var wg sync.WaitGroup
	for i := range config.InputPaths {
		results[i] = ReprojectBatchResult{
			TaskID:     uuid.New().String(),
			InputPath:  config.InputPaths[i],
			OutputPath: config.OutputPaths[i],
		}

		wg.Add(1)
		go func(r *ReprojectBatchResult) {
			defer wg.Done()
			err := pool.Execute(ctx, func() error {
				return runBatchTask(config, opts, r)
			})
			if err != nil && r.Error == nil {
				r.Error = err
			}
		}(&results[i])
	}
	wg.Wait()

	return results
}

// runBatchTask 执行单个任务并写入日志
func runBatchTask(config *ReprojectBatchConfig, opts *ReprojectOptions, r *ReprojectBatchResult) error {
	if config.Log != nil {
		task := &WarpTask{
			ID:         r.TaskID,
			InputPath:  r.InputPath,
			OutputPath: r.OutputPath,
			Algorithm:  config.Resample.String(),
			DstEPSG:    config.DstEPSG,
		}
		if err := config.Log.Begin(task); err != nil {
			log.Printf("记录任务失败 %s: %v", r.TaskID, err)
		}
	}

	info, err := reprojectFile(r.InputPath, r.OutputPath, config.OutputFormat, config.DstEPSG, opts)
	if err != nil {
		r.Error = fmt.Errorf("failed to reproject %s: %w", r.InputPath, err)
	} else {
		r.Output = info
		if config.ComputeStats {
			// 统计失败（如输出全为NoData）不影响任务结果，Stats为nil
			bs, err := fileBandStats(r.OutputPath)
			if err != nil {
				log.Printf("统计输出失败 %s: %v", r.TaskID, err)
			} else {
				r.Stats = bs
			}
		}
	}
	if r.Error != nil {
		log.Printf("重投影任务失败 %s: %v", r.TaskID, r.Error)
	}

	if config.Log != nil {
		var w, h int
		if r.Output != nil {
			w, h = r.Output.Width, r.Output.Height
		}
		if err := config.Log.Finish(r.TaskID, r.Error, w, h); err != nil {
			log.Printf("记录任务失败 %s: %v", r.TaskID, err)
		}
	}
	return r.Error
}

func fileBandStats(path string) (*BandStats, error) {
	ds, err := OpenDataset(path, false)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	return ds.BandStatistics(1)
}

// BatchErrors 汇总批量结果中的错误
func BatchErrors(results []ReprojectBatchResult) error {
	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, r.Error)
		}
	}
	return errors.Join(errs...)
}
