package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/John-Robertt/linkpreview/internal/infra/fsx"
)

// Store 提供 <root>/providers/ 下的数据源响应缓存。
//
// 约束：
// - 只缓存成功解析过的原始响应（失败不落盘，下一次仍会真实请求）
// - TTL 以文件 mtime 计算；TTL<=0 表示永不过期
// - Root 为空表示禁用缓存：读永远 miss，写直接忽略
type Store struct {
	Root string
	TTL  time.Duration

	now func() time.Time
}

func New(root string, ttl time.Duration) *Store {
	root = strings.TrimSpace(root)
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Store{Root: root, TTL: ttl, now: time.Now}
}

// Enabled 报告缓存是否启用。
func (s *Store) Enabled() bool {
	return s != nil && s.Root != ""
}

// BodyPath 返回 source 对 targetURL 的缓存文件路径。
// 文件名取 targetURL 的 sha256，避免把任意 URL 字符拼进路径。
func (s *Store) BodyPath(source, targetURL string) (string, error) {
	p, err := cleanSource(source)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(targetURL) == "" {
		return "", fmt.Errorf("targetURL 不能为空")
	}
	return filepath.Join(s.Root, "providers", p, key(targetURL)+".body"), nil
}

func (s *Store) ReadBody(source, targetURL string) ([]byte, bool, error) {
	if !s.Enabled() {
		return nil, false, nil
	}
	path, err := s.BodyPath(source, targetURL)
	if err != nil {
		return nil, false, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if s.TTL > 0 && s.clock().Sub(fi.ModTime()) > s.TTL {
		return nil, false, nil
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

func (s *Store) WriteBody(source, targetURL string, body []byte) error {
	if !s.Enabled() {
		return nil
	}
	path, err := s.BodyPath(source, targetURL)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), body)
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func key(targetURL string) string {
	sum := sha256.Sum256([]byte(targetURL))
	return hex.EncodeToString(sum[:])
}

var sourceNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func cleanSource(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("source 不能为空")
	}
	// 最小约束：避免路径穿越；source 名称本身是枚举（hax/page）。
	if !sourceNameRE.MatchString(p) {
		return "", fmt.Errorf("非法 source：%q", p)
	}
	return p, nil
}

// Prune 删除所有已过期的缓存文件，返回删除数量。TTL<=0 或缓存禁用时什么都不做。
func (s *Store) Prune() (int, error) {
	if !s.Enabled() || s.TTL <= 0 {
		return 0, nil
	}
	root := filepath.Join(s.Root, "providers")
	now := s.clock()

	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".body") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(fi.ModTime()) <= s.TTL {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}
