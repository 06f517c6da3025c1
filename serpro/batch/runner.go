// Package batch drives a regime election run: one request per spreadsheet row, strictly in order.
package batch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/alapierre/go-serpro-client/serpro/sheet"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "serpro.batch")

// DefaultMaxConsecutiveAuthFailures is used when Config leaves the limit negative.
const DefaultMaxConsecutiveAuthFailures = 3

type EnvelopeBuilder interface {
	Build(req model.TaxpayerRequest) *model.Envelope
}

type Submitter interface {
	Submit(ctx context.Context, envelope *model.Envelope) model.Outcome
}

type Persister interface {
	Persist(ctx context.Context, rowIndex int, numero string, d *model.Declaracao) error
}

type Config struct {
	// MaxConsecutiveAuthFailures stops the run after that many rows in a row failed to authenticate.
	// 0 disables the check.
	MaxConsecutiveAuthFailures int
}

type Runner struct {
	builder EnvelopeBuilder
	client  Submitter
	sink    Persister
	cfg     Config
	now     func() time.Time
}

func NewRunner(builder EnvelopeBuilder, client Submitter, sink Persister, cfg Config) *Runner {
	if cfg.MaxConsecutiveAuthFailures < 0 {
		cfg.MaxConsecutiveAuthFailures = DefaultMaxConsecutiveAuthFailures
	}
	return &Runner{builder: builder, client: client, sink: sink, cfg: cfg, now: time.Now}
}

// Run processes every row of src. A failing row never stops the run; only a failing source does,
// in which case the partial report is returned together with the error.
func (r *Runner) Run(ctx context.Context, src sheet.RowSource) (*Report, error) {
	report := &Report{RunID: uuid.New(), StartedAt: r.now()}
	log := logger.WithField("run", report.RunID.String())

	total := 0
	if t, ok := src.(interface{ Total() int }); ok {
		total = t.Total()
	}
	log.WithField("rows", total).Info("Iniciando o processamento da planilha")

	consecutiveAuth := 0
	for {
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.finish(r.now())
			return report, errors.Wrap(err, "read row")
		}

		if report.Aborted != nil {
			report.add(RowResult{Index: row.Index, Line: row.Line, Numero: row.CNPJ, Status: StatusSkipped, Mensagem: report.Aborted.Error()})
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Aborted = err
			report.add(RowResult{Index: row.Index, Line: row.Line, Numero: row.CNPJ, Status: StatusSkipped, Mensagem: err.Error()})
			continue
		}

		if total > 0 {
			log.WithField("row", row.Index+1).Infof("Processando linha %d/%d", row.Index+1, total)
		}
		res := r.processRow(ctx, row)
		report.add(res)

		if errors.Is(res.Err, serpro.ErrAuthentication) {
			consecutiveAuth++
		} else {
			consecutiveAuth = 0
		}
		if limit := r.cfg.MaxConsecutiveAuthFailures; limit > 0 && consecutiveAuth >= limit {
			report.Aborted = serpro.Markf(serpro.ErrAuthentication, "%d consecutive authentication failures, skipping remaining rows", consecutiveAuth)
			log.WithError(report.Aborted).Error("Processamento interrompido")
		}
	}

	report.finish(r.now())
	log.WithFields(logrus.Fields{
		"total":     len(report.Rows),
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"skipped":   report.Skipped,
		"elapsed":   report.FinishedAt.Sub(report.StartedAt).String(),
	}).Info("Processamento concluído")
	return report, nil
}

func (r *Runner) processRow(ctx context.Context, row *sheet.Row) (res RowResult) {
	res = RowResult{Index: row.Index, Line: row.Line, Numero: row.CNPJ}
	ctx = serpro.ContextWithRow(ctx, row.Index)
	log := serpro.Logger(ctx, "serpro.batch")

	defer func() {
		if p := recover(); p != nil {
			res.fail(fmt.Sprintf("erro inesperado: %v", p), errors.Errorf("panic: %v", p))
			log.WithField("panic", p).Error("Erro ao processar a linha")
		}
	}()

	req, err := row.Request()
	if err != nil {
		res.fail(err.Error(), err)
		log.WithError(err).Error("Linha inválida")
		return res
	}
	res.Numero = req.Numero
	log = log.WithFields(logrus.Fields{"contribuinte": req.Numero, "tipo": req.Tipo})
	log.Info("Processando contribuinte")

	out := r.client.Submit(ctx, r.builder.Build(req))
	if !out.OK() {
		cause := out.Cause
		if cause == nil {
			cause = errors.New(out.Mensagem)
		}
		res.fail(out.Mensagem, cause)
		log.WithField("mensagem", out.Mensagem).Error("Falha")
		return res
	}

	if err := r.sink.Persist(ctx, row.Index, req.Numero, out.Dados); err != nil {
		res.fail("Erro ao salvar dados: "+err.Error(), err)
		log.WithError(err).Error("Erro ao salvar dados")
		return res
	}

	res.Status = StatusSuccess
	res.Mensagem = out.Mensagem
	res.HasReceipt = out.Dados.HasPdf()
	log.Info("Sucesso - dados salvos")
	return res
}
