package segment

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

const (
	envModelPath = "CUTOUT_MODEL_PATH"
	envLibPath   = "CUTOUT_ORT_LIB"
	envModelSize = "CUTOUT_MODEL_SIZE"
	envThreshold = "CUTOUT_THRESHOLD"
)

// ONNXConfig 前景分割模型配置
//
// 适用于 U²-Net / IS-Net / BiRefNet 一类显著性模型：
// 输入 [1,3,S,S]，输出 [1,C,S,S]，每个输出通道视为一个实例候选
type ONNXConfig struct {
	ModelPath     string
	SharedLibPath string
	InputName     string
	OutputName    string
	InputSize     int
	// 输出通道数
	Instances int
	Mean      [3]float32
	Std       [3]float32
	// 通道峰值低于阈值时不算检测到实例
	Threshold float32
}

// DefaultONNXConfig rembg 的 u2net 默认参数
func DefaultONNXConfig() ONNXConfig {
	return ONNXConfig{
		ModelPath:     "models/u2net.onnx",
		SharedLibPath: defaultSharedLibPath(),
		InputName:     "input.1",
		OutputName:    "1959",
		InputSize:     320,
		Instances:     1,
		Mean:          [3]float32{0.485, 0.456, 0.406},
		Std:           [3]float32{0.229, 0.224, 0.225},
		Threshold:     0.5,
	}
}

// ONNXConfigFromEnv 默认配置 + 环境变量覆盖
func ONNXConfigFromEnv() (ONNXConfig, error) {
	cfg := DefaultONNXConfig()
	if v := os.Getenv(envModelPath); v != "" {
		cfg.ModelPath = v
	}
	if v := os.Getenv(envLibPath); v != "" {
		cfg.SharedLibPath = v
	}
	if v := os.Getenv(envModelSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", envModelSize, err)
		}
		cfg.InputSize = n
	}
	if v := os.Getenv(envThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", envThreshold, err)
		}
		cfg.Threshold = float32(f)
	}
	return cfg, cfg.Validate()
}

func (c ONNXConfig) Validate() error {
	switch {
	case c.ModelPath == "":
		return fmt.Errorf("onnx config: empty model path")
	case c.InputName == "" || c.OutputName == "":
		return fmt.Errorf("onnx config: empty input/output name")
	case c.InputSize <= 0:
		return fmt.Errorf("onnx config: input size %d", c.InputSize)
	case c.Instances <= 0:
		return fmt.Errorf("onnx config: instances %d", c.Instances)
	case c.Threshold < 0 || c.Threshold > 1:
		return fmt.Errorf("onnx config: threshold %v out of [0,1]", c.Threshold)
	}
	for i, s := range c.Std {
		if s == 0 {
			return fmt.Errorf("onnx config: std[%d] is zero", i)
		}
	}
	return nil
}

func defaultSharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.dylib"
		}
		return "third_party/onnxruntime_amd64.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}
