package batch

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/alapierre/go-serpro-client/serpro"
)

type Status string

const (
	StatusSuccess Status = "sucesso"
	StatusFailed  Status = "falha"
	StatusSkipped Status = "ignorada"
)

// RowResult is the outcome of one data row.
type RowResult struct {
	Index  int
	Line   int
	Numero string
	Status Status
	// Mensagem is the provider message on success and the failure reason otherwise.
	Mensagem   string
	HasReceipt bool
	Err        error
}

func (r *RowResult) fail(msg string, err error) {
	r.Status = StatusFailed
	r.Mensagem = msg
	r.Err = err
}

// Report summarises one run.
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time

	Succeeded int
	Failed    int
	Skipped   int
	Rows      []RowResult

	// Aborted is set when the run stopped before the last row.
	Aborted error
}

func (r *Report) add(res RowResult) {
	switch res.Status {
	case StatusSuccess:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
	r.Rows = append(r.Rows, res)
}

func (r *Report) finish(at time.Time) {
	r.FinishedAt = at
}

// OK reports whether every row succeeded.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Skipped == 0 && r.Aborted == nil
}

var csvHeader = []string{"execucao", "linha", "contribuinte", "status", "categoria", "mensagem", "demonstrativo"}

var categories = map[error]string{
	serpro.ErrConfiguration:  "configuracao",
	serpro.ErrAuthentication: "autenticacao",
	serpro.ErrTransport:      "transporte",
	serpro.ErrResponseFormat: "resposta",
	serpro.ErrValidation:     "validacao",
}

// Category labels the error kind of a failed row. It is empty for successful rows
// and for failures reported by the service itself.
func (r RowResult) Category() string {
	return categories[serpro.Kind(r.Err)]
}

// WriteCSV writes one line per row, in processing order.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write header")
	}

	id := r.RunID.String()
	for _, row := range r.Rows {
		rec := []string{
			id,
			strconv.Itoa(row.Index + 1),
			row.Numero,
			string(row.Status),
			row.Category(),
			row.Mensagem,
			strconv.FormatBool(row.HasReceipt),
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write row")
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, "flush csv")
	}
	return nil
}
