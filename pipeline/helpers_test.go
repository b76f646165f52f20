package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/cutout/raster"
	"github.com/chaos-io/cutout/segment"
)

var (
	subjectColor    = color.NRGBA{R: 220, G: 30, B: 40, A: 255}
	backgroundColor = color.NRGBA{R: 250, G: 250, B: 250, A: 255}
)

// squareImage 100x100 不透明图，(30,30)-(70,70) 为红色主体
func squareImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := backgroundColor
			if x >= 30 && x <= 70 && y >= 30 && y <= 70 {
				c = subjectColor
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func memFs(t *testing.T, files map[string][]byte) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, data := range files {
		require.NoError(t, afero.WriteFile(fs, name, data, 0o644))
	}
	return fs
}

// redDetector 红色像素即前景，给出与原图同尺寸的理想遮罩
type redDetector struct{}

func (redDetector) Detect(_ context.Context, img *raster.Image) ([]*raster.Mask, error) {
	m, err := raster.NewMask(img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	found := false
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			c := img.NRGBAAt(x, y)
			if c.R > 200 && c.G < 100 {
				m.SetValue(x, y, 255)
				found = true
			}
		}
	}
	if !found {
		return nil, nil
	}
	return []*raster.Mask{m}, nil
}

// segmenterFunc 直接返回指定遮罩或错误
type segmenterFunc func(ctx context.Context, img *raster.Image) (*raster.Mask, error)

func (f segmenterFunc) Segment(ctx context.Context, img *raster.Image) (*raster.Mask, error) {
	return f(ctx, img)
}

// gatedSegmenter 在 gate 关闭前阻塞，用来让处理停留在 Processing
type gatedSegmenter struct {
	gate    chan struct{}
	entered chan struct{}
	next    segment.Segmenter
}

func newGatedSegmenter() *gatedSegmenter {
	return &gatedSegmenter{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
		next:    segment.NewEngine(redDetector{}, nil),
	}
}

func (g *gatedSegmenter) Segment(ctx context.Context, img *raster.Image) (*raster.Mask, error) {
	g.entered <- struct{}{}
	<-g.gate
	return g.next.Segment(ctx, img)
}

// countingResource 记录 Acquire/Release 次数
type countingResource struct {
	Resource
	acquired atomic.Int32
	released atomic.Int32
}

func (c *countingResource) Acquire(ctx context.Context) (Handle, error) {
	h, err := c.Resource.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	c.acquired.Add(1)
	return &countingHandle{Handle: h, released: &c.released}, nil
}

type countingHandle struct {
	Handle
	released *atomic.Int32
}

func (h *countingHandle) Release() error {
	h.released.Add(1)
	return h.Handle.Release()
}

// countingScope 记录授权申请和归还
type countingScope struct {
	deny    bool
	started atomic.Int32
	stopped atomic.Int32
}

func (s *countingScope) StartAccessing(string) bool {
	if s.deny {
		return false
	}
	s.started.Add(1)
	return true
}

func (s *countingScope) StopAccessing(string) {
	s.stopped.Add(1)
}
