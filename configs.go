/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package Gowarp

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

var MainConfig = DefaultWarpConfig()

// WarpConfig 重投影全局配置
type WarpConfig struct {
	XMLName     xml.Name `xml:"config"`
	CacheMax    string   `xml:"cachemax"`    // GDAL_CACHEMAX，如 "512" (MB) 或 "10%"
	NumThreads  string   `xml:"numthreads"`  // GDAL_NUM_THREADS，如 "ALL_CPUS"
	Workers     int      `xml:"workers"`     // 批量重投影并发数，0为按CPU核心数
	MemoryLimit float64  `xml:"memorylimit"` // 单次变形内存上限（MB），0为GDAL默认
	LogDB       string   `xml:"logdb"`       // 任务日志sqlite路径，空为不记录
}

// DefaultWarpConfig 默认配置
func DefaultWarpConfig() WarpConfig {
	return WarpConfig{
		NumThreads: "ALL_CPUS",
	}
}

// DefaultConfigPath 默认配置文件路径
func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "BoundlessMap", "warp.xml"), nil
}

// LoadWarpConfig 读取XML配置，缺失的字段取默认值
func LoadWarpConfig(path string) (WarpConfig, error) {
	cfg := DefaultWarpConfig()

	xmlFile, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer xmlFile.Close()

	if err := xml.NewDecoder(xmlFile).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if cfg.Workers < 0 {
		return cfg, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.MemoryLimit < 0 {
		return cfg, fmt.Errorf("memorylimit must not be negative, got %v", cfg.MemoryLimit)
	}
	return cfg, nil
}

// Apply 把配置写入GDAL全局配置项
func (c WarpConfig) Apply() {
	if c.CacheMax != "" {
		SetConfigOption("GDAL_CACHEMAX", c.CacheMax)
	}
	if c.NumThreads != "" {
		SetConfigOption("GDAL_NUM_THREADS", c.NumThreads)
	}
}

// MemoryLimitBytes 变形内存上限换算为字节
func (c WarpConfig) MemoryLimitBytes() float64 {
	return c.MemoryLimit * 1024 * 1024
}

// WarpOptions 配置对应的GDAL变形选项
func (c WarpConfig) WarpOptions() map[string]string {
	if c.NumThreads == "" {
		return nil
	}
	if _, err := strconv.Atoi(c.NumThreads); err != nil && c.NumThreads != "ALL_CPUS" {
		return nil
	}
	return map[string]string{"NUM_THREADS": c.NumThreads}
}

func init() {
	path, err := DefaultConfigPath()
	if err != nil {
		return
	}
	cfg, err := LoadWarpConfig(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("加载配置失败 %s: %v", path, err)
		}
		return
	}
	MainConfig = cfg
	MainConfig.Apply()
}
