package segment

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaos-io/cutout/raster"
)

type fakeDetector struct {
	masks []*raster.Mask
	err   error
	calls int
}

func (f *fakeDetector) Detect(_ context.Context, _ *raster.Image) ([]*raster.Mask, error) {
	f.calls++
	return f.masks, f.err
}

func newMask(t *testing.T, w, h int, r image.Rectangle, v uint8) *raster.Mask {
	t.Helper()
	m, err := raster.NewMask(w, h)
	require.NoError(t, err)
	m.Fill(r, v)
	return m
}

func newImage(t *testing.T, w, h int) *raster.Image {
	t.Helper()
	img, err := raster.New(w, h)
	require.NoError(t, err)
	return img
}

func TestEngine_Segment(t *testing.T) {
	t.Parallel()

	detectErr := errors.New("boom")

	tests := []struct {
		name     string
		detector *fakeDetector
		img      *raster.Image
		wantErr  error
		check    func(t *testing.T, m *raster.Mask)
	}{
		{
			name:     "没有实例",
			detector: &fakeDetector{},
			img:      newImage(t, 8, 8),
			wantErr:  ErrNoForeground,
		},
		{
			name:     "检测器出错",
			detector: &fakeDetector{err: detectErr},
			img:      newImage(t, 8, 8),
			wantErr:  detectErr,
		},
		{
			name:     "非法图像",
			detector: &fakeDetector{},
			img:      &raster.Image{Width: 2, Height: 2},
			wantErr:  raster.ErrInvalidSize,
		},
		{
			name: "多个实例合并并放大",
			detector: &fakeDetector{masks: []*raster.Mask{
				newMask(t, 4, 4, image.Rect(0, 0, 1, 1), 255),
				newMask(t, 4, 4, image.Rect(3, 3, 4, 4), 255),
			}},
			img: newImage(t, 8, 8),
			check: func(t *testing.T, m *raster.Mask) {
				assert.Equal(t, 8, m.Width)
				assert.Equal(t, 8, m.Height)
				assert.Equal(t, uint8(255), m.Value(0, 0))
				assert.Equal(t, uint8(255), m.Value(7, 7))
				assert.Equal(t, uint8(0), m.Value(4, 1))
			},
		},
		{
			name: "同尺寸遮罩原样返回",
			detector: &fakeDetector{masks: []*raster.Mask{
				newMask(t, 5, 3, image.Rect(1, 1, 3, 2), 200),
			}},
			img: newImage(t, 5, 3),
			check: func(t *testing.T, m *raster.Mask) {
				want := newMask(t, 5, 3, image.Rect(1, 1, 3, 2), 200)
				assert.Equal(t, want.Pix, m.Pix)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewEngine(tt.detector, nil).Segment(context.Background(), tt.img)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	a := newMask(t, 3, 1, image.Rect(0, 0, 2, 1), 100)
	b := newMask(t, 3, 1, image.Rect(1, 0, 3, 1), 200)

	got, err := Merge([]*raster.Mask{a, b})
	require.NoError(t, err)
	assert.Equal(t, []uint8{100, 200, 200}, got.Pix)
	// 输入不被修改
	assert.Equal(t, []uint8{100, 100, 0}, a.Pix)

	_, err = Merge([]*raster.Mask{a, newMask(t, 2, 2, image.Rectangle{}, 0)})
	assert.ErrorIs(t, err, errMaskSize)

	_, err = Merge(nil)
	assert.ErrorIs(t, err, ErrNoForeground)
}

func TestResample(t *testing.T) {
	t.Parallel()

	t.Run("半分辨率放大到原图尺寸", func(t *testing.T) {
		t.Parallel()

		half := newMask(t, 50, 50, image.Rect(15, 15, 35, 35), 255)
		got, err := Resample(half, 100, 100)
		require.NoError(t, err)
		assert.Equal(t, 100, got.Width)
		assert.Equal(t, 100, got.Height)
		assert.Len(t, got.Pix, 100*100)
		assert.Equal(t, uint8(255), got.Value(50, 50))
		assert.Equal(t, uint8(0), got.Value(5, 5))
		assert.Equal(t, uint8(0), got.Value(95, 95))
	})

	t.Run("非整数比例", func(t *testing.T) {
		t.Parallel()

		got, err := Resample(newMask(t, 7, 3, image.Rect(0, 0, 7, 3), 255), 13, 29)
		require.NoError(t, err)
		assert.Equal(t, 13, got.Width)
		assert.Equal(t, 29, got.Height)
		for _, v := range got.Pix {
			assert.GreaterOrEqual(t, v, uint8(254))
		}
	})

	t.Run("双线性边缘过渡", func(t *testing.T) {
		t.Parallel()

		// 左半前景，右半背景，放大后中间出现过渡值
		src := newMask(t, 2, 1, image.Rect(0, 0, 1, 1), 255)
		got, err := Resample(src, 8, 1)
		require.NoError(t, err)
		assert.Equal(t, uint8(255), got.Value(0, 0))
		assert.Equal(t, uint8(0), got.Value(7, 0))
		mid := got.Value(4, 0)
		assert.Greater(t, mid, uint8(0))
		assert.Less(t, mid, uint8(255))
	})

	t.Run("非法尺寸", func(t *testing.T) {
		t.Parallel()

		_, err := Resample(newMask(t, 2, 2, image.Rectangle{}, 0), 0, 4)
		assert.ErrorIs(t, err, raster.ErrInvalidSize)
	})
}
