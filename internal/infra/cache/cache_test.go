package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_ReadWritePage(t *testing.T) {
	root := t.TempDir()

	s := New(root, false)
	if err := s.WritePage("A1/1", []byte("<html/>")); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	b, ok, err := s.ReadPage("A1/1")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if !ok {
		t.Fatalf("期望命中缓存，但 ok=false")
	}
	if string(b) != "<html/>" {
		t.Fatalf("内容不一致：%q", string(b))
	}

	path, err := s.PagePath("A1/1")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if path != filepath.Join(root, "pages", "A1_1.html") {
		t.Fatalf("缓存路径不符合预期：%q", path)
	}
}

func TestStore_ReadMiss(t *testing.T) {
	s := New(t.TempDir(), false)
	_, ok, err := s.ReadPage("A2?pack=0")
	if err != nil || ok {
		t.Fatalf("期望未命中且无错误：ok=%v err=%v", ok, err)
	}
}

func TestStore_ReadOnlyRejectWrite(t *testing.T) {
	root := t.TempDir()

	s := New(root, true)
	err := s.WritePage("P-A/12", []byte("<html/>"))
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("期望 ErrReadOnly，实际：%v", err)
	}

	path, _ := s.PagePath("P-A/12")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("期望文件不存在，但 Stat err=%v", err)
	}
}

func TestCleanKey_RejectsTraversal(t *testing.T) {
	name, err := cleanKey("../../etc/passwd")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if name != "etc_passwd" {
		t.Fatalf("期望被压平为单个文件名，实际 %q", name)
	}
	if _, err := cleanKey(" / "); err == nil {
		t.Fatalf("空 key 期望错误")
	}
}
