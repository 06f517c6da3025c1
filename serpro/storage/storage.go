// Package storage writes receipt documents to a local directory or an S3 bucket.
package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "serpro.storage")

// ReceiptStorage saves a named blob, replacing any previous content.
type ReceiptStorage interface {
	Save(ctx context.Context, name string, data []byte) error
}

// LocalStorage keeps receipts in a directory.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates dir when it does not exist yet.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}
	logger.WithField("dir", dir).Info("Diretório para salvar respostas")
	return &LocalStorage{dir: dir}, nil
}

// Path returns the location name is stored at.
func (s *LocalStorage) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *LocalStorage) Save(_ context.Context, name string, data []byte) error {
	path := s.Path(name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	logger.WithField("path", path).Info("Arquivo salvo")
	return nil
}
