// Package sink records successful elections: one database row plus the decoded receipt.
package sink

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/alapierre/go-serpro-client/serpro/storage"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// Repository persists records; *store.RequisicaoRepo implements it.
type Repository interface {
	Save(ctx context.Context, rec *model.Requisicao) (int64, error)
}

type Sink struct {
	repo     Repository
	receipts storage.ReceiptStorage
}

func New(repo Repository, receipts storage.ReceiptStorage) *Sink {
	return &Sink{repo: repo, receipts: receipts}
}

// ReceiptName is the file name of the receipt of the data row at rowIndex (0-based).
func ReceiptName(numero string, rowIndex int) string {
	return fmt.Sprintf("%s_demonstrativo_%d.pdf", numero, rowIndex)
}

// Persist commits the record first and then stores the receipt. A database failure is returned
// and nothing is written. Receipt failures are only logged: the record stays committed.
func (s *Sink) Persist(ctx context.Context, rowIndex int, numero string, d *model.Declaracao) error {
	log := serpro.Logger(ctx, "serpro.sink").WithField("contribuinte", numero)

	id, err := s.repo.Save(ctx, model.NewRequisicao(d))
	if err != nil {
		return errors.Wrap(err, "save requisicao")
	}
	log.WithField("id", id).Info("Dados salvos no banco de dados")

	if !d.HasPdf() {
		log.Info("Resposta sem demonstrativo PDF")
		return nil
	}

	name := ReceiptName(numero, rowIndex)
	log = log.WithField("arquivo", name)

	pdf, err := base64.StdEncoding.DecodeString(d.DemonstrativoPdf)
	if err != nil {
		log.WithError(err).Error("Erro ao decodificar o demonstrativo PDF")
		return nil
	}
	if err := s.receipts.Save(ctx, name, pdf); err != nil {
		log.WithError(err).Error("Erro ao salvar o demonstrativo PDF")
		return nil
	}

	log.WithFields(logrus.Fields{"bytes": len(pdf)}).Info("Arquivo PDF salvo com sucesso")
	return nil
}
