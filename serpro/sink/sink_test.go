package sink

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/alapierre/go-serpro-client/serpro/storage"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Save(ctx context.Context, rec *model.Requisicao) (int64, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(int64), args.Error(1)
}

func declaracao(pdf string) *model.Declaracao {
	return &model.Declaracao{
		CnpjMatriz:       "11222333000181",
		AnoCalendario:    2024,
		RegimeEscolhido:  "COMPETENCIA",
		DataHoraOpcao:    "20240115103000",
		DemonstrativoPdf: pdf,
	}
}

func newSink(t *testing.T, repo Repository) (*Sink, string) {
	t.Helper()
	dir := t.TempDir()
	local, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return New(repo, local), dir
}

func TestSink_Persist(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Save", mock.Anything, &model.Requisicao{
		CnpjMatriz:             "11222333000181",
		AnoCalendario:          2024,
		RegimeEscolhido:        "COMPETENCIA",
		DataHoraOpcao:          "20240115103000",
		DemonstrativoPdfBase64: sql.NullString{String: "JVBERi0xLjQ=", Valid: true},
	}).Return(int64(7), nil).Once()

	s, dir := newSink(t, repo)
	require.NoError(t, s.Persist(context.Background(), 3, "11222333000181", declaracao("JVBERi0xLjQ=")))

	repo.AssertExpectations(t)
	data, err := os.ReadFile(filepath.Join(dir, "11222333000181_demonstrativo_3.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
}

func TestSink_Persist_NoPdf(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Save", mock.Anything, mock.MatchedBy(func(r *model.Requisicao) bool {
		return !r.DemonstrativoPdfBase64.Valid
	})).Return(int64(1), nil).Once()

	s, dir := newSink(t, repo)
	require.NoError(t, s.Persist(context.Background(), 0, "11222333000181", declaracao("")))

	repo.AssertExpectations(t)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSink_Persist_DatabaseFailure(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(int64(0), errors.New("connection reset")).Once()

	s, dir := newSink(t, repo)
	err := s.Persist(context.Background(), 0, "11222333000181", declaracao("JVBERi0xLjQ="))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSink_Persist_InvalidBase64(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(int64(1), nil).Once()

	s, dir := newSink(t, repo)
	assert.NoError(t, s.Persist(context.Background(), 0, "11222333000181", declaracao("não é base64")))

	repo.AssertExpectations(t)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingStorage struct{}

func (failingStorage) Save(context.Context, string, []byte) error { return errors.New("disk full") }

func TestSink_Persist_StorageFailureIsSwallowed(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Save", mock.Anything, mock.Anything).Return(int64(1), nil).Once()

	s := New(repo, failingStorage{})
	assert.NoError(t, s.Persist(context.Background(), 0, "11222333000181", declaracao("JVBERi0xLjQ=")))
	repo.AssertExpectations(t)
}

func TestReceiptName(t *testing.T) {
	assert.Equal(t, "00012345678909_demonstrativo_12.pdf", ReceiptName("00012345678909", 12))
}
