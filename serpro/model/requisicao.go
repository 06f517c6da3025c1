package model

import "database/sql"

// Requisicao is a persisted row of the requisicoes table.
type Requisicao struct {
	ID                     int64          `db:"id"`
	CnpjMatriz             string         `db:"cnpj_matriz"`
	AnoCalendario          int            `db:"ano_calendario"`
	RegimeEscolhido        string         `db:"regime_escolhido"`
	DataHoraOpcao          string         `db:"data_hora_opcao"`
	DemonstrativoPdfBase64 sql.NullString `db:"demonstrativo_pdf_base64"`
}

// NewRequisicao maps a Declaracao onto a record; an empty receipt becomes NULL.
func NewRequisicao(d *Declaracao) *Requisicao {
	return &Requisicao{
		CnpjMatriz:      d.CnpjMatriz,
		AnoCalendario:   d.AnoCalendario,
		RegimeEscolhido: d.RegimeEscolhido,
		DataHoraOpcao:   d.DataHoraOpcao,
		DemonstrativoPdfBase64: sql.NullString{
			String: d.DemonstrativoPdf,
			Valid:  d.DemonstrativoPdf != "",
		},
	}
}
