// Package fsblob implements the blob client over a local directory tree.
// Blob keys map to file paths relative to the root. Useful for development
// and for tailing a feed copied out of object storage.
package fsblob

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidefeed/tidefeed/internal/blob"
)

// Client reads blobs from a directory root.
type Client struct {
	root string
}

// New returns a Client rooted at dir.
func New(dir string) (*Client, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("fsblob: root is not a directory")
	}
	return &Client{root: dir}, nil
}

// List implements blob.Client. Keys use forward slashes regardless of OS.
func (c *Client) List(_ context.Context, prefix string) ([]blob.Info, error) {
	var out []blob.Info
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, blob.Info{Key: key, Length: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ReadRange implements blob.Client.
func (c *Client) ReadRange(_ context.Context, key string, offset, length int64) ([]byte, error) {
	f, err := os.Open(filepath.Join(c.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, blob.ErrNotFound
		}
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}
