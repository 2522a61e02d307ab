package cache

import (
	"os"
	"testing"
	"time"
)

func TestStore_ReadWriteBody(t *testing.T) {
	s := New(t.TempDir(), time.Hour)
	target := "https://example.com/a?b=c"

	if err := s.WriteBody("hax", target, []byte(`{"data":{}}`)); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, ok, err := s.ReadBody("hax", target)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok {
		t.Fatalf("期望命中缓存，但 ok=false")
	}
	if string(b) != `{"data":{}}` {
		t.Fatalf("内容不一致：%q", string(b))
	}

	path, err := s.BodyPath("hax", target)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("期望文件存在，但 Stat 失败：%v", err)
	}
}

func TestStore_TTLExpired(t *testing.T) {
	s := New(t.TempDir(), time.Minute)
	target := "https://example.com"
	if err := s.WriteBody("page", target, []byte("<html/>")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, ok, err := s.ReadBody("page", target); err != nil || ok {
		t.Fatalf("过期条目应 miss，实际 ok=%v err=%v", ok, err)
	}
}

func TestStore_DisabledIsNoop(t *testing.T) {
	s := New("", time.Hour)
	if s.Enabled() {
		t.Fatalf("Root 为空时应禁用")
	}
	if err := s.WriteBody("hax", "https://example.com", []byte("x")); err != nil {
		t.Fatalf("禁用时写入应忽略，实际：%v", err)
	}
	if _, ok, err := s.ReadBody("hax", "https://example.com"); ok || err != nil {
		t.Fatalf("禁用时读取应 miss，实际 ok=%v err=%v", ok, err)
	}
}

func TestStore_RejectBadSource(t *testing.T) {
	s := New(t.TempDir(), 0)
	if _, err := s.BodyPath("../etc", "https://example.com"); err == nil {
		t.Fatalf("期望拒绝非法 source")
	}
}

func TestStore_PruneExpired(t *testing.T) {
	s := New(t.TempDir(), time.Minute)
	if err := s.WriteBody("hax", "https://old.test", []byte("old")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	oldPath, _ := s.BodyPath("hax", "https://old.test")
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(oldPath, past, past); err != nil {
		t.Fatalf("修改 mtime 失败：%v", err)
	}
	if err := s.WriteBody("page", "https://new.test", []byte("new")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	n, err := s.Prune()
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if n != 1 {
		t.Fatalf("期望删除 1 个过期文件，实际 %d", n)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("过期文件应被删除：%v", err)
	}
	if _, ok, _ := s.ReadBody("page", "https://new.test"); !ok {
		t.Fatalf("未过期文件应保留")
	}
}

func TestStore_PruneEmptyRoot(t *testing.T) {
	s := New(t.TempDir(), time.Minute)
	if n, err := s.Prune(); err != nil || n != 0 {
		t.Fatalf("空目录应无操作，实际 n=%d err=%v", n, err)
	}
}
