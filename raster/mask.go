package raster

import (
	"image"
	"image/color"
)

// Mask 单通道前景遮罩，0 为背景，255 为前景
// 分辨率可以与原图不同，使用前需要重采样到原图尺寸
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewMask 创建全背景遮罩
func NewMask(width, height int) (*Mask, error) {
	n, err := bufLen(width, height, 1)
	if err != nil {
		return nil, err
	}
	return &Mask{Width: width, Height: height, Pix: make([]uint8, n)}, nil
}

// MaskFromAlpha 拷贝 *image.Alpha 的内容，原点移到 (0,0)
func MaskFromAlpha(a *image.Alpha) (*Mask, error) {
	w, h := a.Rect.Dx(), a.Rect.Dy()
	m, err := NewMask(w, h)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		src := a.Pix[y*a.Stride : y*a.Stride+w]
		copy(m.Pix[y*w:(y+1)*w], src)
	}
	return m, nil
}

func (m *Mask) Clone() *Mask {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Mask{Width: m.Width, Height: m.Height, Pix: pix}
}

func (m *Mask) Valid() bool {
	return m != nil && m.Width > 0 && m.Height > 0 && len(m.Pix) == m.Width*m.Height
}

// Value 越界的像素视为背景
func (m *Mask) Value(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Pix[y*m.Width+x]
}

func (m *Mask) SetValue(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Fill 把矩形区域 r 设为 v，r 会被裁到遮罩范围内
func (m *Mask) Fill(r image.Rectangle, v uint8) {
	r = r.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := m.Pix[y*m.Width : (y+1)*m.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x] = v
		}
	}
}

func (m *Mask) ColorModel() color.Model { return color.AlphaModel }

func (m *Mask) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

func (m *Mask) At(x, y int) color.Color { return color.Alpha{A: m.Value(x, y)} }

func (m *Mask) Set(x, y int, c color.Color) {
	m.SetValue(x, y, color.AlphaModel.Convert(c).(color.Alpha).A)
}

// Alpha 返回共享缓冲的 *image.Alpha 视图
func (m *Mask) Alpha() *image.Alpha {
	return &image.Alpha{Pix: m.Pix, Stride: m.Width, Rect: m.Bounds()}
}
