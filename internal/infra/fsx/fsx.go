package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 通过可替换的函数指针，让测试能稳定模拟“并发写者抢先落盘 / 不支持硬链接”等情况。
var (
	linkFunc   = os.Link
	renameFunc = os.Rename
)

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// WriteFileIfAbsent 在 dir 下原子写入 name，语义是“create if absent”：
//
// - 目标不存在：写入完整内容，返回 created=true
// - 目标已存在（包括与其它进程竞争时对方先落盘）：不覆盖，返回 created=false, err=nil
// - 目标是目录/非普通文件：返回 *PathTypeConflictError
//
// 实现：同目录临时文件 + link(tmp, dst)。link 在 dst 已存在时必然失败，
// 因此“先到者胜”由文件系统保证，读者永远看不到写了一半的文件。
// 文件系统不支持硬链接时退化为 Lstat + rename（存在极小的竞争窗口，但内容相同，无害）。
func WriteFileIfAbsent(dir, name string, data []byte) (created bool, err error) {
	dir = filepath.Clean(dir)
	dst := filepath.Join(dir, name)
	if exists, err := checkTarget(dst); err != nil || exists {
		return false, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}

	// 前缀带 '.'，避免与缓存条目混淆。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return false, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return false, err
	}
	if err := tmp.Sync(); err != nil {
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	lerr := linkFunc(tmpName, dst)
	switch {
	case lerr == nil:
	case errors.Is(lerr, os.ErrExist):
		// 其它写者先一步落盘：first writer wins。
		return false, nil
	default:
		// 不支持硬链接：退化为 rename（rename 会覆盖，所以先再检查一次）。
		if exists, err := checkTarget(dst); err != nil || exists {
			return false, err
		}
		if err := renameFunc(tmpName, dst); err != nil {
			return false, err
		}
	}

	_ = syncDirBestEffort(dir)
	return true, nil
}

// checkTarget 返回 dst 是否已经是一个普通文件。
func checkTarget(dst string) (bool, error) {
	fi, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if fi.IsDir() {
		return false, &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}
	if !fi.Mode().IsRegular() {
		return false, &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
	}
	return true, nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
