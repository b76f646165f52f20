package trim

import (
	"errors"
	"fmt"
	"image"
	"runtime"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/chaos-io/cutout/raster"
)

// ErrTrim 目前只在 Crop 收到越界的框时返回，Trim 本身不会失败
var ErrTrim = errors.New("trim failed")

// 每个并行分段至少扫描的行数
const minBandRows = 64

// BoundingBox 闭区间矩形，MinX..MaxX、MinY..MaxY 都包含在内
type BoundingBox struct {
	MinX, MinY, MaxX, MaxY int
}

// Full 整张图的范围
func Full(img *raster.Image) BoundingBox {
	return BoundingBox{MaxX: img.Width - 1, MaxY: img.Height - 1}
}

func (b BoundingBox) Width() int  { return b.MaxX - b.MinX + 1 }
func (b BoundingBox) Height() int { return b.MaxY - b.MinY + 1 }

// Rect 转成半开区间的 image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.MinX, b.MinY, b.MaxX+1, b.MaxY+1)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// band 一段行的扫描结果，found 为 false 时其余字段无意义
type band struct {
	box   BoundingBox
	found bool
}

// merge 结合律、交换律都成立，分段顺序不影响结果
func merge(a, b band) band {
	switch {
	case !a.found:
		return b
	case !b.found:
		return a
	}
	return band{found: true, box: BoundingBox{
		MinX: min(a.box.MinX, b.box.MinX),
		MinY: min(a.box.MinY, b.box.MinY),
		MaxX: max(a.box.MaxX, b.box.MaxX),
		MaxY: max(a.box.MaxY, b.box.MaxY),
	}}
}

// scanRows 扫描 [y0, y1) 行里 alpha > 0 的像素
func scanRows(img *raster.Image, y0, y1 int) band {
	var r band
	for y := y0; y < y1; y++ {
		row := img.Row(y)

		left := -1
		for x := 0; x < img.Width; x++ {
			if row[x*4+3] > 0 {
				left = x
				break
			}
		}
		if left < 0 {
			continue
		}
		right := left
		for x := img.Width - 1; x > left; x-- {
			if row[x*4+3] > 0 {
				right = x
				break
			}
		}

		r = merge(r, band{found: true, box: BoundingBox{MinX: left, MinY: y, MaxX: right, MaxY: y}})
	}
	return r
}

// BoundsSequential 单线程扫描，Bounds 的参照实现
func BoundsSequential(img *raster.Image) (BoundingBox, bool) {
	if !img.Valid() {
		return BoundingBox{}, false
	}
	r := scanRows(img, 0, img.Height)
	return r.box, r.found
}

// Bounds 计算所有 alpha > 0 像素的最小外接框
// 行被切成若干段并行扫描，最后做 min/max 归并
// 没有非透明像素时返回 false
func Bounds(img *raster.Image) (BoundingBox, bool) {
	if !img.Valid() {
		return BoundingBox{}, false
	}
	return boundsParallel(img, runtime.GOMAXPROCS(0))
}

func boundsParallel(img *raster.Image, workers int) (BoundingBox, bool) {
	n := min(workers, (img.Height+minBandRows-1)/minBandRows)
	if n <= 1 {
		return BoundsSequential(img)
	}

	rows := (img.Height + n - 1) / n
	bands := make([]band, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		y0 := i * rows
		y1 := min(y0+rows, img.Height)
		if y0 >= y1 {
			continue
		}
		g.Go(func() error {
			bands[i] = scanRows(img, y0, y1)
			return nil
		})
	}
	_ = g.Wait()

	r := lo.Reduce(bands, func(acc band, b band, _ int) band {
		return merge(acc, b)
	}, band{})
	return r.box, r.found
}

// Trim 裁剪到非透明内容的外接框
//
//	没有非透明像素时原样返回输入（不是错误，也不会返回 0 尺寸图像）
//	否则返回新分配的图像，逐行直接拷贝，边缘像素不做任何重采样
func Trim(img *raster.Image) (*raster.Image, BoundingBox) {
	box, ok := Bounds(img)
	if !ok {
		if !img.Valid() {
			return img, BoundingBox{}
		}
		return img, Full(img)
	}

	out, err := Crop(img, box)
	if err != nil {
		// Bounds 的结果一定在图像范围内
		panic(err)
	}
	return out, box
}

// Crop 拷贝 box 内的像素到新图像
func Crop(img *raster.Image, box BoundingBox) (*raster.Image, error) {
	if !img.Valid() {
		return nil, fmt.Errorf("%w: invalid image", ErrTrim)
	}
	if box.MinX < 0 || box.MinY < 0 || box.MaxX >= img.Width || box.MaxY >= img.Height ||
		box.MinX > box.MaxX || box.MinY > box.MaxY {
		return nil, fmt.Errorf("%w: box %s outside %dx%d", ErrTrim, box, img.Width, img.Height)
	}

	out, err := raster.New(box.Width(), box.Height())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrim, err)
	}
	for y := 0; y < out.Height; y++ {
		src := img.Row(box.MinY + y)
		copy(out.Row(y), src[box.MinX*4:(box.MaxX+1)*4])
	}
	return out, nil
}
