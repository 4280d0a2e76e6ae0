package storageadapter

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/busmesh/testorch/infrastructure/errors"
)

// LocalProvider backs the "local://" scheme: a bucket is a directory on the
// local filesystem, used for development and in-process test runs.
type LocalProvider struct {
	root string
}

// NewLocalProvider roots a LocalProvider at baseDir/bucket.
func NewLocalProvider(baseDir, bucket string) *LocalProvider {
	return &LocalProvider{root: filepath.Join(baseDir, bucket)}
}

func (p *LocalProvider) List(ctx context.Context, prefix string) ([]string, error) {
	base := filepath.Join(p.root, sanitizeKey(prefix))
	var keys []string
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil {
			return relErr
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.StreamingFailure(p.root, prefix, err)
	}
	return keys, nil
}

func (p *LocalProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(p.root, sanitizeKey(key)))
	if err != nil {
		return nil, errors.StreamingFailure(p.root, key, err)
	}
	return f, nil
}

func (p *LocalProvider) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	dst := filepath.Join(p.root, sanitizeKey(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.StreamingFailure(p.root, key, err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return errors.StreamingFailure(p.root, key, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, data); err != nil {
		return errors.StreamingFailure(p.root, key, err)
	}
	return nil
}

var _ Provider = (*LocalProvider)(nil)
