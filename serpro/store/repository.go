package store

import (
	"context"

	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/go-faster/errors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const insertRequisicao = `INSERT INTO requisicoes
	(cnpj_matriz, ano_calendario, regime_escolhido, data_hora_opcao, demonstrativo_pdf_base64)
	VALUES (:cnpj_matriz, :ano_calendario, :regime_escolhido, :data_hora_opcao, :demonstrativo_pdf_base64)
	RETURNING id`

// RequisicaoRepo stores Requisicao records.
type RequisicaoRepo struct {
	db *sqlx.DB
}

func NewRequisicaoRepo(db *sqlx.DB) *RequisicaoRepo {
	return &RequisicaoRepo{db: db}
}

// Save inserts rec in its own transaction and sets rec.ID.
func (r *RequisicaoRepo) Save(ctx context.Context, rec *model.Requisicao) (id int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := tx.BindNamed(insertRequisicao, rec)
	if err != nil {
		return 0, errors.Wrap(err, "bind requisicao")
	}
	if err = tx.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert requisicao")
	}
	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit requisicao")
	}

	rec.ID = id
	logger.WithFields(logrus.Fields{
		"id":          id,
		"cnpj_matriz": rec.CnpjMatriz,
	}).Debug("Requisicao saved")
	return id, nil
}
