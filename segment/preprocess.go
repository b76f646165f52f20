package segment

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"

	"github.com/chaos-io/cutout/raster"
)

// toTensor 缩放到 size x size，按通道归一化后写成 NCHW 排布
// alpha 通道不参与推理
func toTensor(img *raster.Image, size int, mean, std [3]float32, dst []float32) error {
	plane := size * size
	if len(dst) != 3*plane {
		return fmt.Errorf("input tensor has %d elements, want %d", len(dst), 3*plane)
	}

	resized, err := raster.FromImage(resize.Resize(uint(size), uint(size), img.NRGBA(), resize.Bilinear))
	if err != nil {
		return fmt.Errorf("resize model input: %w", err)
	}

	for i := 0; i < plane; i++ {
		px := resized.Pix[i*4 : i*4+3 : i*4+3]
		for c := 0; c < 3; c++ {
			dst[c*plane+i] = (float32(px[c])/255 - mean[c]) / std[c]
		}
	}
	return nil
}

// toMasks 把模型输出的每个通道转成实例遮罩
//
//	通道峰值 < threshold：未检测到，跳过
//	其余通道做 min-max 归一化后量化到 [0,255]
func toMasks(out []float32, instances, size int, threshold float32) ([]*raster.Mask, error) {
	plane := size * size
	if len(out) != instances*plane {
		return nil, fmt.Errorf("output tensor has %d elements, want %d", len(out), instances*plane)
	}

	masks := make([]*raster.Mask, 0, instances)
	for c := 0; c < instances; c++ {
		ch := out[c*plane : (c+1)*plane]

		lo, hi := math32.Inf(1), math32.Inf(-1)
		for _, v := range ch {
			lo = math32.Min(lo, v)
			hi = math32.Max(hi, v)
		}
		if math32.IsNaN(hi) || hi < threshold {
			continue
		}

		m, err := raster.NewMask(size, size)
		if err != nil {
			return nil, err
		}
		span := hi - lo
		for i, v := range ch {
			n := float32(1)
			if span > 0 {
				n = (v - lo) / span
			}
			n = math32.Max(0, math32.Min(1, n))
			m.Pix[i] = uint8(math32.Round(n * 255))
		}
		masks = append(masks, m)
	}
	return masks, nil
}
