package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

var (
	// ErrUnsupportedSource 只接受本地路径和 file:// URL
	ErrUnsupportedSource = errors.New("unsupported source")
	// ErrAccessDenied 无法取得源文件的访问权限
	ErrAccessDenied = errors.New("access to source denied")
)

// Resource 需要先取得访问权限再读取的输入源
type Resource interface {
	Name() string
	Acquire(ctx context.Context) (Handle, error)
}

// Handle 一次独占的读取，Release 只会真正执行一次
type Handle interface {
	io.Reader
	Release() error
}

// Scope 沙盒式的访问授权，StartAccessing 返回 false 表示拒绝
type Scope interface {
	StartAccessing(path string) bool
	StopAccessing(path string)
}

// FileResource afero 文件系统上的一个文件
type FileResource struct {
	fs    afero.Fs
	path  string
	scope Scope
}

type SourceOption func(r *FileResource)

// WithScope 读取前后申请/归还访问授权
func WithScope(s Scope) SourceOption {
	return func(r *FileResource) {
		r.scope = s
	}
}

func NewFileResource(fs afero.Fs, path string, opts ...SourceOption) *FileResource {
	r := &FileResource{fs: fs, path: path}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ParseSource 解析本地路径或 file:// URL
func ParseSource(fs afero.Fs, source string, opts ...SourceOption) (*FileResource, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("%w: empty", ErrUnsupportedSource)
	}
	if !strings.Contains(source, "://") {
		return NewFileResource(fs, source, opts...), nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	if u.Scheme != "file" || u.Path == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, source)
	}
	return NewFileResource(fs, u.Path, opts...), nil
}

func (r *FileResource) Name() string { return r.path }

func (r *FileResource) Acquire(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.scope != nil && !r.scope.StartAccessing(r.path) {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, r.path)
	}

	f, err := r.fs.Open(r.path)
	if err != nil {
		if r.scope != nil {
			r.scope.StopAccessing(r.path)
		}
		return nil, fmt.Errorf("open %s: %w", r.path, err)
	}
	return &fileHandle{File: f, path: r.path, scope: r.scope}, nil
}

type fileHandle struct {
	afero.File
	path  string
	scope Scope
	once  sync.Once
	err   error
}

func (h *fileHandle) Release() error {
	h.once.Do(func() {
		h.err = h.File.Close()
		if h.scope != nil {
			h.scope.StopAccessing(h.path)
		}
	})
	return h.err
}
