package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "respostas", "lote")

	s, err := NewLocalStorage(dir)
	require.NoError(t, err)
	assert.DirExists(t, dir)

	require.NoError(t, s.Save(context.Background(), "11222333000181_demonstrativo_0.pdf", []byte("%PDF-1.4")))

	data, err := os.ReadFile(filepath.Join(dir, "11222333000181_demonstrativo_0.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	// overwrite
	require.NoError(t, s.Save(context.Background(), "11222333000181_demonstrativo_0.pdf", []byte("x")))
	data, err = os.ReadFile(s.Path("11222333000181_demonstrativo_0.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestLocalStorage_PathStaysInDirectory(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.dir, "x.pdf"), s.Path("../../x.pdf"))
}

func TestLocalStorage_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewLocalStorage(filepath.Join(file, "sub"))
	assert.Error(t, err)
}

type recorder struct {
	names []string
	err   error
}

func (r *recorder) Save(_ context.Context, name string, _ []byte) error {
	r.names = append(r.names, name)
	return r.err
}

func TestMulti_Save(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	require.NoError(t, Multi{a, b}.Save(context.Background(), "f.pdf", nil))
	assert.Equal(t, []string{"f.pdf"}, a.names)
	assert.Equal(t, []string{"f.pdf"}, b.names)

	failing := &recorder{err: errors.New("boom")}
	c := &recorder{}
	assert.Error(t, Multi{failing, c}.Save(context.Background(), "f.pdf", nil))
	assert.Empty(t, c.names)
}

func TestS3Storage_Key(t *testing.T) {
	s := &S3Storage{bucket: "b", prefix: "recibos/2024"}
	assert.Equal(t, "recibos/2024/a.pdf", s.key("a.pdf"))

	s.prefix = ""
	assert.Equal(t, "a.pdf", s.key("dir/a.pdf"))
}

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Config{})
	assert.Error(t, err)
}
