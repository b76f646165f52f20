package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chaos-io/cutout/raster"
)

// ErrNoForeground 检测器没有找到任何前景实例
var ErrNoForeground = errors.New("no foreground subject detected")

// Segmenter 给出与原图同尺寸的前景遮罩
type Segmenter interface {
	Segment(ctx context.Context, img *raster.Image) (*raster.Mask, error)
}

// Detector 前景实例检测，返回检测器分辨率下的实例遮罩
// 没有实例时返回空切片，不返回错误
//
//go:generate mockgen -destination=mocks/detector.go -package=mocks . Detector
type Detector interface {
	Detect(ctx context.Context, img *raster.Image) ([]*raster.Mask, error)
}

// Engine 检测 → 合并实例 → 双线性重采样到原图尺寸
type Engine struct {
	detector Detector
	log      *slog.Logger
}

func NewEngine(detector Detector, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{detector: detector, log: log}
}

func (e *Engine) Segment(ctx context.Context, img *raster.Image) (*raster.Mask, error) {
	if !img.Valid() {
		return nil, fmt.Errorf("segment: %w", raster.ErrInvalidSize)
	}

	instances, err := e.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detect foreground: %w", err)
	}
	if len(instances) == 0 {
		return nil, ErrNoForeground
	}
	e.log.Debug("foreground detected", "instances", len(instances),
		"mask_width", instances[0].Width, "mask_height", instances[0].Height)

	merged, err := Merge(instances)
	if err != nil {
		return nil, err
	}

	return Resample(merged, img.Width, img.Height)
}
