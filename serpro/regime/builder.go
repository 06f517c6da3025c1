// Package regime builds Integra Contador requests for the regime election service
// (REGIMEAPURACAO / EFETUAROPCAOREGIME101).
package regime

import (
	"strings"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/go-faster/jx"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "serpro.regime")

const (
	IdSistema     = "REGIMEAPURACAO"
	IdServico     = "EFETUAROPCAOREGIME101"
	VersaoSistema = "1.0"

	documentLength = 14
)

// FormatDocument strips every non-digit character and left-pads the result with zeros to 14 characters.
func FormatDocument(raw string) string {
	digits := Digits(raw)
	if len(digits) >= documentLength {
		return digits
	}
	return strings.Repeat("0", documentLength-len(digits)) + digits
}

// Digits drops every non-digit character.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Builder creates request envelopes on behalf of a fixed contracting party and request author.
type Builder struct {
	contratante      model.Identificacao
	autorPedidoDados model.Identificacao
}

// NewBuilder takes the CNPJs of the party that contracted the API and of the request author.
func NewBuilder(contratante, autorPedidoDados string) (*Builder, error) {
	c := FormatDocument(contratante)
	a := FormatDocument(autorPedidoDados)
	if strings.Trim(c, "0") == "" || strings.Trim(a, "0") == "" {
		return nil, serpro.Markf(serpro.ErrConfiguration, "contratante and autorPedidoDados numbers are required")
	}
	return &Builder{
		contratante:      model.Identificacao{Numero: c, Tipo: model.PessoaJuridica},
		autorPedidoDados: model.Identificacao{Numero: a, Tipo: model.PessoaJuridica},
	}, nil
}

// Build wraps the election payload into the request envelope. It has no side effects besides logging.
func (b *Builder) Build(req model.TaxpayerRequest) *model.Envelope {
	env := &model.Envelope{
		Contratante:      b.contratante,
		AutorPedidoDados: b.autorPedidoDados,
		Contribuinte: model.Identificacao{
			Numero: req.Numero,
			Tipo:   req.Tipo,
		},
		PedidoDados: model.PedidoDados{
			IdSistema:     IdSistema,
			IdServico:     IdServico,
			VersaoSistema: VersaoSistema,
			Dados: EncodeOpcao(model.OpcaoRegime{
				AnoOpcao:          req.AnoOpcao,
				TipoRegime:        req.TipoRegime,
				DescritivoRegime:  req.DescritivoRegime,
				DeAcordoResolucao: true,
			}),
		},
	}

	logger.WithFields(logrus.Fields{
		"contribuinte": req.Numero,
		"tipo":         req.Tipo,
		"dados":        env.PedidoDados.Dados,
	}).Debug("Envelope built")

	return env
}

// EncodeOpcao renders the inner payload. Non-ASCII characters are kept as is.
func EncodeOpcao(o model.OpcaoRegime) string {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("anoOpcao")
	e.Int(o.AnoOpcao)
	e.FieldStart("tipoRegime")
	e.Int(o.TipoRegime)
	e.FieldStart("descritivoRegime")
	e.Str(o.DescritivoRegime)
	e.FieldStart("deAcordoResolucao")
	e.Bool(o.DeAcordoResolucao)
	e.ObjEnd()
	return string(e.Bytes())
}
