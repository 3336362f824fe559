package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrBadPayload = errors.New("bad file payload")

// Store 是文件存储协作方：收到原始字节后返回一个可取回的引用。
type Store interface {
	Save(filename, dataURL string) (string, error)
}

// DiskStore 把文件落到本地目录并以 /uploads/<name> 形式对外提供。
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	base := "/" + strings.TrimPrefix(filepath.ToSlash(filepath.Clean(dir)), "/")
	return &DiskStore{dir: dir, baseURL: base}, nil
}

// Dir 返回磁盘目录，路由层用它挂静态服务。
func (s *DiskStore) Dir() string { return s.dir }

// BaseURL 返回文件引用的 URL 前缀，与 Dir 一一对应。
func (s *DiskStore) BaseURL() string { return s.baseURL }

// Save 解码客户端上传的 base64 data URL，用随机前缀避免文件名冲突。
func (s *DiskStore) Save(filename, dataURL string) (string, error) {
	_, raw, ok := strings.Cut(dataURL, ",")
	if !ok {
		return "", ErrBadPayload
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", ErrBadPayload
	}
	name := fmt.Sprintf("%s_%s", uuid.NewString(), sanitize(filename))
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + "/" + name, nil
}

func sanitize(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, " ", "_"))
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "file"
	}
	return name
}

// 浏览器可以内联渲染的扩展名；其余文件引用展示为下载项。
var inlineExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true,
}

// IsInline 按扩展名判断文件引用是否可内联展示。
func IsInline(ref string) bool {
	return inlineExts[strings.ToLower(filepath.Ext(ref))]
}
