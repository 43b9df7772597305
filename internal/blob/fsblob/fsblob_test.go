package fsblob

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tidefeed/tidefeed/internal/blob"
)

func newClient(t *testing.T) (*Client, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, dir
}

func write(t *testing.T, dir, key, data string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestListSlashKeysSorted(t *testing.T) {
	c, dir := newClient(t)
	write(t, dir, "log/00/b", "bb")
	write(t, dir, "log/00/a", "aaa")
	write(t, dir, "idx/segments/meta", "x")

	infos, err := c.List(context.Background(), "log/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "log/00/a" || infos[1].Key != "log/00/b" {
		t.Fatalf("list = %+v", infos)
	}
	if infos[0].Length != 3 {
		t.Fatalf("length = %d, want 3", infos[0].Length)
	}
}

func TestReadRangeBounds(t *testing.T) {
	c, dir := newClient(t)
	write(t, dir, "k", "0123456789")

	got, err := c.ReadRange(context.Background(), "k", 2, 3)
	if err != nil || string(got) != "234" {
		t.Fatalf("mid read = %q, %v", got, err)
	}
	got, err = c.ReadRange(context.Background(), "k", 8, 100)
	if err != nil || string(got) != "89" {
		t.Fatalf("tail read = %q, %v", got, err)
	}
	got, err = c.ReadRange(context.Background(), "k", 20, 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("past-end read = %q, %v", got, err)
	}
}

func TestReadRangeMissing(t *testing.T) {
	c, _ := newClient(t)
	if _, err := c.ReadRange(context.Background(), "nope", 0, 1); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("missing blob = %v, want blob.ErrNotFound", err)
	}
}

func TestNewRejectsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(path); err == nil {
		t.Fatalf("New on a file succeeded")
	}
}
