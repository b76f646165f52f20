package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// ErrInvalidSize 宽高非法或像素数溢出
var ErrInvalidSize = errors.New("invalid raster size")

// Image 是 8 位直通（非预乘）RGBA 像素缓冲
//
//	行优先，每像素 4 字节，Pix 长度恒为 Width*Height*4
//	坐标原点固定为 (0,0)
//
// 所有处理阶段都只读输入、写新的 Image，缓冲不会在阶段之间共享。
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// New 创建全透明的图像
func New(width, height int) (*Image, error) {
	n, err := bufLen(width, height, 4)
	if err != nil {
		return nil, err
	}
	return &Image{Width: width, Height: height, Pix: make([]uint8, n)}, nil
}

func bufLen(width, height, bpp int) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if width > math.MaxInt/bpp/height {
		return 0, fmt.Errorf("%w: %dx%d overflows", ErrInvalidSize, width, height)
	}
	return width * height * bpp, nil
}

// FromImage 把任意解码结果转成直通 RGBA，原点移到 (0,0)
// 返回的缓冲是新分配的，不与 src 共享
func FromImage(src image.Image) (*Image, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, b.Dx(), b.Dy())
	}
	if r, ok := src.(*Image); ok {
		return r.Clone(), nil
	}

	nrgba := imaging.Clone(src)
	w, h := nrgba.Rect.Dx(), nrgba.Rect.Dy()
	if nrgba.Stride == w*4 && len(nrgba.Pix) == w*h*4 {
		return &Image{Width: w, Height: h, Pix: nrgba.Pix}, nil
	}

	dst, err := New(w, h)
	if err != nil {
		return nil, err
	}
	for y := 0; y < h; y++ {
		copy(dst.Row(y), nrgba.Pix[y*nrgba.Stride:y*nrgba.Stride+w*4])
	}
	return dst, nil
}

// Clone 深拷贝
func (m *Image) Clone() *Image {
	pix := make([]uint8, len(m.Pix))
	copy(pix, m.Pix)
	return &Image{Width: m.Width, Height: m.Height, Pix: pix}
}

// Valid 检查缓冲长度是否与宽高一致
func (m *Image) Valid() bool {
	return m != nil && m.Width > 0 && m.Height > 0 && len(m.Pix) == m.Width*m.Height*4
}

func (m *Image) Stride() int { return m.Width * 4 }

// PixOffset 返回 (x, y) 在 Pix 中的起始下标
func (m *Image) PixOffset(x, y int) int {
	return y*m.Width*4 + x*4
}

// Row 返回第 y 行的切片（共享底层缓冲）
func (m *Image) Row(y int) []uint8 {
	i := y * m.Width * 4
	return m.Pix[i : i+m.Width*4 : i+m.Width*4]
}

func (m *Image) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < m.Width && y < m.Height
}

func (m *Image) NRGBAAt(x, y int) color.NRGBA {
	if !m.inBounds(x, y) {
		return color.NRGBA{}
	}
	i := m.PixOffset(x, y)
	s := m.Pix[i : i+4 : i+4]
	return color.NRGBA{R: s[0], G: s[1], B: s[2], A: s[3]}
}

func (m *Image) SetNRGBA(x, y int, c color.NRGBA) {
	if !m.inBounds(x, y) {
		return
	}
	i := m.PixOffset(x, y)
	s := m.Pix[i : i+4 : i+4]
	s[0], s[1], s[2], s[3] = c.R, c.G, c.B, c.A
}

// AlphaAt 越界返回 0
func (m *Image) AlphaAt(x, y int) uint8 {
	if !m.inBounds(x, y) {
		return 0
	}
	return m.Pix[m.PixOffset(x, y)+3]
}

func (m *Image) ColorModel() color.Model { return color.NRGBAModel }

func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

func (m *Image) At(x, y int) color.Color { return m.NRGBAAt(x, y) }

func (m *Image) Set(x, y int, c color.Color) {
	m.SetNRGBA(x, y, color.NRGBAModel.Convert(c).(color.NRGBA))
}

// NRGBA 返回共享同一缓冲的 *image.NRGBA 视图，用于编码等只读场景
func (m *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{Pix: m.Pix, Stride: m.Stride(), Rect: m.Bounds()}
}
