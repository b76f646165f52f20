package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/chaos-io/cutout/raster"
	"github.com/chaos-io/cutout/util"
)

// Save 把图像编码成 PNG 写到 path
// 编码失败返回 KindEncode，创建目录或写文件失败返回 KindWrite
func Save(fs afero.Fs, img *raster.Image, path string) error {
	if !img.Valid() {
		return newError(KindEncode, "encode png", errors.New("invalid image"))
	}

	var buf bytes.Buffer
	if err := util.EncodePNG(&buf, img.NRGBA()); err != nil {
		return newError(KindEncode, "encode png", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, os.ModePerm); err != nil {
			return newError(KindWrite, "create dir", err)
		}
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return newError(KindWrite, "write "+path, err)
	}
	return nil
}

// SaveName 默认输出文件名：<原文件名>_cutout.png
func SaveName(source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "image"
	}
	return stem + "_cutout.png"
}
