package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/fundcik/internal/infra/fsx"
)

// Store 提供 <Dir>/ 下的“每个请求一个文件”的响应缓存。
//
// 约束：
// - key 只由请求参数（+ 区分搜索类型的 suffix）决定，同一参数永远命中同一文件
// - 写入是 create-if-absent：first writer wins，永不覆盖、永不过期
// - ReadOnly=true 时只读（用于 resolve 调试等不希望落盘的场景）
type Store struct {
	Dir      string
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

const ext = ".html"

func New(dir string, readOnly bool) Store {
	dir = strings.TrimSpace(dir)
	if dir != "" {
		dir = filepath.Clean(dir)
	}
	return Store{Dir: dir, ReadOnly: readOnly}
}

// Key 计算缓存文件名（不含目录）：hex(sha256(canonical params)) + suffix + ".html"。
//
// canonical 形式使用 url.Values.Encode：按 key 排序，保证与 map 遍历顺序无关。
func Key(params url.Values, suffix string) (string, error) {
	s, err := cleanSuffix(suffix)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(params.Encode()))
	return hex.EncodeToString(sum[:]) + s + ext, nil
}

// Path 返回 params 对应缓存文件的绝对路径。
func (s Store) Path(params url.Values, suffix string) (string, error) {
	if s.Dir == "" {
		return "", fmt.Errorf("cache dir 不能为空")
	}
	k, err := Key(params, suffix)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, k), nil
}

// Read 读取缓存；未命中返回 ok=false 且 err=nil。
func (s Store) Read(params url.Values, suffix string) ([]byte, bool, error) {
	path, err := s.Path(params, suffix)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Write 以 create-if-absent 语义写入缓存。已存在时返回 created=false（不是错误）。
func (s Store) Write(params url.Values, suffix string, body []byte) (created bool, err error) {
	if s.ReadOnly {
		return false, ErrReadOnly
	}
	k, err := Key(params, suffix)
	if err != nil {
		return false, err
	}
	if s.Dir == "" {
		return false, fmt.Errorf("cache dir 不能为空")
	}
	return fsx.WriteFileIfAbsent(s.Dir, k, body)
}

var suffixRE = regexp.MustCompile(`^[a-z0-9_]*$`)

func cleanSuffix(sfx string) (string, error) {
	sfx = strings.ToLower(strings.TrimSpace(sfx))
	// 最小约束：避免路径穿越；suffix 本身是枚举（"" / "_485"）。
	if !suffixRE.MatchString(sfx) {
		return "", fmt.Errorf("非法 cache suffix：%q", sfx)
	}
	return sfx, nil
}
