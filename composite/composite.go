package composite

import (
	"errors"
	"fmt"

	"github.com/chaos-io/cutout/raster"
)

// ErrDimensionMismatch 遮罩与图像尺寸不一致或输入非法
var ErrDimensionMismatch = errors.New("mask and image dimensions differ")

// Composite 以遮罩为权重，把原图叠加到全透明背景上
//
//	outA = mask * inA / 255（四舍五入）
//	RGB 原样拷贝，结果仍是直通 alpha
//
// 输入只读，返回新分配的图像。
func Composite(img *raster.Image, mask *raster.Mask) (*raster.Image, error) {
	if !img.Valid() || !mask.Valid() {
		return nil, fmt.Errorf("%w: invalid input", ErrDimensionMismatch)
	}
	if img.Width != mask.Width || img.Height != mask.Height {
		return nil, fmt.Errorf("%w: image %dx%d, mask %dx%d",
			ErrDimensionMismatch, img.Width, img.Height, mask.Width, mask.Height)
	}

	out, err := raster.New(img.Width, img.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
	}

	for i, m := range mask.Pix {
		if m == 0 {
			continue
		}
		p := i * 4
		src := img.Pix[p : p+4 : p+4]
		dst := out.Pix[p : p+4 : p+4]
		dst[0], dst[1], dst[2] = src[0], src[1], src[2]
		dst[3] = mulAlpha(src[3], m)
	}
	return out, nil
}

func mulAlpha(a, m uint8) uint8 {
	return uint8((uint32(a)*uint32(m) + 127) / 255)
}
