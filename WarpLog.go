package Gowarp

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 任务状态
const (
	TaskPending   = "pending"
	TaskSucceeded = "succeeded"
	TaskFailed    = "failed"
)

// WarpTask 重投影任务记录
type WarpTask struct {
	ID         string `gorm:"primaryKey;size:36"`
	InputPath  string
	OutputPath string
	Algorithm  string `gorm:"size:32"`
	DstEPSG    int
	Status     string `gorm:"size:16;index"`
	Message    string
	Width      int
	Height     int
	StartedAt  time.Time
	FinishedAt *time.Time
	DurationMs int64
}

// TableName 表名
func (WarpTask) TableName() string {
	return "warp_tasks"
}

// WarpLog 任务日志，可用任意gorm数据库
type WarpLog struct {
	db    *gorm.DB
	owned bool
}

// NewWarpLog 在已有连接上建立任务日志
func NewWarpLog(db *gorm.DB) (*WarpLog, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := db.AutoMigrate(&WarpTask{}); err != nil {
		return nil, fmt.Errorf("failed to migrate warp_tasks: %w", err)
	}
	return &WarpLog{db: db}, nil
}

// OpenWarpLog 打开（或创建）sqlite任务日志
func OpenWarpLog(path string) (*WarpLog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open warp log %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite单写者
	sqlDB.SetMaxOpenConns(1)

	wl, err := NewWarpLog(db)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	wl.owned = true
	return wl, nil
}

// Close 关闭由 OpenWarpLog 打开的连接
func (wl *WarpLog) Close() error {
	if wl == nil || !wl.owned {
		return nil
	}
	sqlDB, err := wl.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Begin 记录任务开始
func (wl *WarpLog) Begin(task *WarpTask) error {
	task.Status = TaskPending
	if task.StartedAt.IsZero() {
		task.StartedAt = time.Now()
	}
	if err := wl.db.Create(task).Error; err != nil {
		return fmt.Errorf("failed to record task %s: %w", task.ID, err)
	}
	return nil
}

// Finish 记录任务结束，taskErr为nil表示成功
func (wl *WarpLog) Finish(id string, taskErr error, width, height int) error {
	var task WarpTask
	if err := wl.db.First(&task, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to load task %s: %w", id, err)
	}

	now := time.Now()
	updates := map[string]any{
		"finished_at": now,
		"duration_ms": now.Sub(task.StartedAt).Milliseconds(),
		"width":       width,
		"height":      height,
		"status":      TaskSucceeded,
		"message":     "",
	}
	if taskErr != nil {
		updates["status"] = TaskFailed
		updates["message"] = taskErr.Error()
	}
	if err := wl.db.Model(&task).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return nil
}

// Get 按ID获取任务
func (wl *WarpLog) Get(id string) (*WarpTask, error) {
	var task WarpTask
	if err := wl.db.First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List 最近的任务，limit<=0时返回全部
func (wl *WarpLog) List(limit int) ([]WarpTask, error) {
	var tasks []WarpTask
	q := wl.db.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// Failures 失败的任务
func (wl *WarpLog) Failures() ([]WarpTask, error) {
	var tasks []WarpTask
	if err := wl.db.Where("status = ?", TaskFailed).Order("started_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}
