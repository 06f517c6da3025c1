package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *RequisicaoRepo {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping database test")
	}

	require.NoError(t, Migrate(dsn))
	// second run must be a no-op
	require.NoError(t, Migrate(dsn))

	db, err := NewDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`DELETE FROM requisicoes WHERE cnpj_matriz = '99999999000191'`)
	require.NoError(t, err)
	return NewRequisicaoRepo(db)
}

func TestRequisicaoRepo_Save(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()

	withPdf := model.NewRequisicao(&model.Declaracao{
		CnpjMatriz:       "99999999000191",
		AnoCalendario:    2024,
		RegimeEscolhido:  "COMPETENCIA",
		DataHoraOpcao:    "20240115103000",
		DemonstrativoPdf: "JVBERi0=",
	})
	id, err := repo.Save(ctx, withPdf)
	require.NoError(t, err)
	assert.Equal(t, id, withPdf.ID)

	withoutPdf := model.NewRequisicao(&model.Declaracao{
		CnpjMatriz:      "99999999000191",
		AnoCalendario:   2025,
		RegimeEscolhido: "CAIXA",
		DataHoraOpcao:   "20250115103000",
	})
	_, err = repo.Save(ctx, withoutPdf)
	require.NoError(t, err)

	var got []model.Requisicao
	require.NoError(t, repo.db.SelectContext(ctx, &got,
		`SELECT id, cnpj_matriz, ano_calendario, regime_escolhido, data_hora_opcao, demonstrativo_pdf_base64
		 FROM requisicoes WHERE cnpj_matriz = $1 ORDER BY id`, "99999999000191"))
	require.Len(t, got, 2)
	assert.Equal(t, *withPdf, got[0])
	assert.Equal(t, sql.NullString{}, got[1].DemonstrativoPdfBase64)
}

func TestRequisicaoRepo_SaveRejectsIncompleteRecord(t *testing.T) {
	repo := testDB(t)

	// cnpj_matriz longer than the column allows
	_, err := repo.Save(context.Background(), &model.Requisicao{CnpjMatriz: "999999990001910", AnoCalendario: 2024})
	assert.Error(t, err)
}
