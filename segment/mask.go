package segment

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/chaos-io/cutout/raster"
)

var errMaskSize = errors.New("instance masks differ in size")

// Merge 按像素取最大值合并多个实例遮罩，任何一个实例覆盖的像素都保留为前景
func Merge(masks []*raster.Mask) (*raster.Mask, error) {
	if len(masks) == 0 {
		return nil, ErrNoForeground
	}
	first := masks[0]
	if !first.Valid() {
		return nil, fmt.Errorf("merge masks: %w", raster.ErrInvalidSize)
	}

	out := first.Clone()
	for i, m := range masks[1:] {
		if !m.Valid() || m.Width != first.Width || m.Height != first.Height {
			return nil, fmt.Errorf("%w: mask %d", errMaskSize, i+1)
		}
		for j, v := range m.Pix {
			if v > out.Pix[j] {
				out.Pix[j] = v
			}
		}
	}
	return out, nil
}

// Resample 双线性插值把遮罩缩放到 width x height
// 目标缓冲初始为 0，插值范围之外的像素保持背景
func Resample(m *raster.Mask, width, height int) (*raster.Mask, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("resample mask: %w", raster.ErrInvalidSize)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("resample mask to %dx%d: %w", width, height, raster.ErrInvalidSize)
	}
	if m.Width == width && m.Height == height {
		return m.Clone(), nil
	}

	dst := image.NewAlpha(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), m.Alpha(), m.Bounds(), draw.Src, nil)

	return raster.MaskFromAlpha(dst)
}
