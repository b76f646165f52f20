package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/cutout/composite"
	"github.com/chaos-io/cutout/raster"
	"github.com/chaos-io/cutout/segment"
	"github.com/chaos-io/cutout/trim"
	"github.com/chaos-io/cutout/util"
)

// Result 一次处理的结果，Original 和 Processed 各自拥有独立的缓冲
type Result struct {
	ID        ksuid.KSUID
	Source    string
	Original  *raster.Image
	Processed *raster.Image
	// 裁剪框，坐标相对于原图
	Crop   trim.BoundingBox
	Stages []StageTiming
}

type StageTiming struct {
	Name    string
	Elapsed time.Duration
}

// Pipeline 解码 → 分割 → 合成 → 裁剪
type Pipeline struct {
	seg segment.Segmenter
	log *slog.Logger
}

func New(seg segment.Segmenter, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{seg: seg, log: log}
}

// Run 同步执行一次完整处理
//
// 源文件的访问权限在进入时获取，无论在哪一步返回都只释放一次。
// 任何一步失败都直接返回 *Error，不暴露中间结果。
func (p *Pipeline) Run(ctx context.Context, src Resource) (*Result, error) {
	id := ksuid.New()
	log := p.log.With("run_id", id.String(), "source", src.Name())
	res := &Result{ID: id, Source: src.Name()}

	stage := func(name string) func() {
		start := time.Now()
		return func() {
			elapsed := time.Since(start)
			res.Stages = append(res.Stages, StageTiming{Name: name, Elapsed: elapsed})
			log.Debug("stage done", "stage", name, "elapsed", elapsed)
		}
	}

	h, err := src.Acquire(ctx)
	if err != nil {
		return nil, newError(KindDecode, "acquire", err)
	}
	defer func() {
		if rerr := h.Release(); rerr != nil {
			log.Warn("release source failed", "error", rerr)
		}
	}()

	done := stage("decode")
	decoded, err := util.DecodeImage(h)
	if err != nil {
		return nil, newError(KindDecode, "decode", err)
	}
	original, err := raster.FromImage(decoded)
	if err != nil {
		return nil, newError(KindDecode, "convert", err)
	}
	done()

	done = stage("segment")
	mask, err := p.seg.Segment(ctx, original.Clone())
	if err != nil {
		return nil, newError(KindSegmentation, "segment", err)
	}
	done()

	done = stage("composite")
	composed, err := composite.Composite(original, mask)
	if err != nil {
		return nil, newError(KindComposite, "composite", err)
	}
	done()

	done = stage("trim")
	trimmed, box := trim.Trim(composed)
	done()

	res.Original = original.Clone()
	res.Processed = trimmed.Clone()
	res.Crop = box

	log.Info("image processed",
		"width", original.Width, "height", original.Height,
		"crop", box.String(), "out_width", trimmed.Width, "out_height", trimmed.Height)
	return res, nil
}
