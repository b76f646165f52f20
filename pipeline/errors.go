package pipeline

import (
	"errors"
	"fmt"
)

// Kind 错误分类
type Kind int

const (
	KindUnknown Kind = iota
	// 源文件无法读取或格式不支持
	KindDecode
	// 没有检测到前景，或检测器出错
	KindSegmentation
	// 遮罩与图像尺寸不一致、分配失败
	KindComposite
	// 保留，当前裁剪策略不会失败
	KindTrim
	KindEncode
	KindWrite
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindSegmentation:
		return "segmentation"
	case KindComposite:
		return "composite"
	case KindTrim:
		return "trim"
	case KindEncode:
		return "encode"
	case KindWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Error 流水线各阶段返回的带类型错误
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Description 面向用户的说明
func (e *Error) Description() string {
	switch e.Kind {
	case KindDecode:
		return "The image could not be read. Make sure it is a PNG, JPEG or another supported format."
	case KindSegmentation:
		return "No foreground subject was found in the image."
	case KindComposite:
		return "The background could not be removed from this image."
	case KindTrim:
		return "The result could not be cropped."
	case KindEncode:
		return "The image could not be encoded as PNG."
	case KindWrite:
		return "The image could not be saved to the chosen location."
	default:
		return e.Error()
	}
}

// KindOf 取出错误链上的 Kind，没有则返回 KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
