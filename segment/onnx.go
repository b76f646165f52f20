package segment

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/chaos-io/cutout/raster"
	"github.com/chaos-io/cutout/util"
)

// ONNXDetector 用 onnxruntime 运行前景分割模型
//
// 会话和输入输出张量在创建时一次性分配，Detect 之间复用，
// 同一时刻只允许一次推理。
type ONNXDetector struct {
	cfg ONNXConfig
	log *slog.Logger

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXDetector 加载共享库和模型，创建推理会话
// 用完后需要调用 Close 释放本地资源
func NewONNXDetector(cfg ONNXConfig, log *slog.Logger) (*ONNXDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if _, err := os.Stat(cfg.SharedLibPath); err != nil {
		return nil, fmt.Errorf("onnxruntime library %s: %w", cfg.SharedLibPath, err)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx model %s: %w", cfg.ModelPath, err)
	}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(cfg.SharedLibPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	size := int64(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.Instances), size, size))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	log.Info("onnx detector ready", "model", cfg.ModelPath, "input_size", cfg.InputSize)

	return &ONNXDetector{
		cfg:     cfg,
		log:     log,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

func (d *ONNXDetector) Detect(ctx context.Context, img *raster.Image) ([]*raster.Mask, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, fmt.Errorf("onnx detector closed")
	}

	if err := toTensor(img, d.cfg.InputSize, d.cfg.Mean, d.cfg.Std, d.input.GetData()); err != nil {
		return nil, err
	}
	done := util.Trace("onnx session run")
	err := d.session.Run()
	done()
	if err != nil {
		return nil, fmt.Errorf("run onnx session: %w", err)
	}

	masks, err := toMasks(d.output.GetData(), d.cfg.Instances, d.cfg.InputSize, d.cfg.Threshold)
	if err != nil {
		return nil, err
	}
	d.log.Debug("onnx inference done", "instances", len(masks))
	return masks, nil
}

// Close 释放会话和张量，可重复调用
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	if d.session != nil {
		err := d.session.Destroy()
		d.session = nil
		if err != nil {
			return fmt.Errorf("destroy onnx session: %w", err)
		}
	}
	return nil
}
