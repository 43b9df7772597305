package blob

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryListPrefix(t *testing.T) {
	m := NewMemory()
	m.Put("log/00/a", []byte("aaa"))
	m.Put("log/00/b", []byte("bb"))
	m.Put("idx/meta", []byte("x"))

	infos, err := m.List(context.Background(), "log/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("list returned %d entries, want 2", len(infos))
	}
	if infos[0].Key != "log/00/a" || infos[0].Length != 3 {
		t.Fatalf("entry 0 = %+v", infos[0])
	}
	if infos[1].Key != "log/00/b" || infos[1].Length != 2 {
		t.Fatalf("entry 1 = %+v", infos[1])
	}
}

func TestMemoryReadRange(t *testing.T) {
	m := NewMemory()
	m.Put("k", []byte("0123456789"))

	got, err := m.ReadRange(context.Background(), "k", 3, 4)
	if err != nil || string(got) != "3456" {
		t.Fatalf("mid read = %q, %v", got, err)
	}
	// Short read at the committed end.
	got, err = m.ReadRange(context.Background(), "k", 8, 100)
	if err != nil || string(got) != "89" {
		t.Fatalf("tail read = %q, %v", got, err)
	}
	// Past the end: empty, not an error.
	got, err = m.ReadRange(context.Background(), "k", 10, 4)
	if err != nil || len(got) != 0 {
		t.Fatalf("past-end read = %q, %v", got, err)
	}
	if _, err := m.ReadRange(context.Background(), "missing", 0, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing blob = %v, want ErrNotFound", err)
	}
}

func TestMemoryAppendGrows(t *testing.T) {
	m := NewMemory()
	m.Append("k", []byte("ab"))
	m.Append("k", []byte("cd"))
	got, err := m.ReadRange(context.Background(), "k", 0, 10)
	if err != nil || string(got) != "abcd" {
		t.Fatalf("after append = %q, %v", got, err)
	}
}

func TestMemoryFailReads(t *testing.T) {
	m := NewMemory()
	m.Put("k", []byte("ab"))
	boom := errors.New("boom")
	m.FailReads(2, boom)

	for i := 0; i < 2; i++ {
		if _, err := m.ReadRange(context.Background(), "k", 0, 2); !errors.Is(err, boom) {
			t.Fatalf("read %d = %v, want injected error", i, err)
		}
	}
	if got, err := m.ReadRange(context.Background(), "k", 0, 2); err != nil || string(got) != "ab" {
		t.Fatalf("read after faults = %q, %v", got, err)
	}
}
