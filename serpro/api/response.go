package api

import (
	"math"
	"strconv"
	"strings"

	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// envelopeResponse is the common response shape of Integra Contador.
type envelopeResponse struct {
	Status    int
	Mensagens []model.Mensagem
	// Dados holds the JSON document transported as a string; empty when absent.
	Dados string
}

func decodeEnvelope(body []byte) (envelopeResponse, error) {
	var out envelopeResponse

	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			n, err := integer(d)
			out.Status = n
			return err
		case "mensagens":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return d.Arr(func(d *jx.Decoder) error {
				m, err := decodeMensagem(d)
				if err != nil {
					return err
				}
				out.Mensagens = append(out.Mensagens, m)
				return nil
			})
		case "dados":
			switch d.Next() {
			case jx.Null:
				return d.Null()
			case jx.String:
				s, err := d.Str()
				out.Dados = s
				return err
			default:
				// some services answer with an embedded document instead of a string
				raw, err := d.Raw()
				out.Dados = raw.String()
				return err
			}
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return envelopeResponse{}, errors.Wrap(err, "decode response envelope")
	}
	return out, nil
}

func decodeMensagem(d *jx.Decoder) (model.Mensagem, error) {
	var m model.Mensagem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "codigo":
			m.Codigo, err = scalar(d)
		case "texto":
			m.Texto, err = scalar(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return m, err
}

// decodeDeclaracao parses the "dados" document of EFETUAROPCAOREGIME101. JSON null yields a zero value.
func decodeDeclaracao(data string) (*model.Declaracao, error) {
	var out model.Declaracao

	d := jx.DecodeStr(data)
	if d.Next() == jx.Null {
		return &out, d.Null()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "cnpjMatriz":
			out.CnpjMatriz, err = scalar(d)
		case "anoCalendario":
			out.AnoCalendario, err = integer(d)
		case "regimeEscolhido":
			out.RegimeEscolhido, err = scalar(d)
		case "dataHoraOpcao":
			out.DataHoraOpcao, err = scalar(d)
		case "demonstrativoPdf":
			out.DemonstrativoPdf, err = scalar(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if d.Next() != jx.Invalid {
		return nil, errors.New("unexpected data after JSON document")
	}
	return &out, nil
}

// scalar reads a string, number or null as text.
func scalar(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		return n.String(), err
	case jx.Null:
		return "", d.Null()
	default:
		raw, err := d.Raw()
		return raw.String(), err
	}
}

// integer accepts 2024, 2024.0 and "2024" within the int32 range.
func integer(d *jx.Decoder) (int, error) {
	s, err := scalar(d)
	if err != nil || s == "" {
		return 0, err
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, errors.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

// JoinMensagens renders the message list as "codigo: texto" pairs separated by ", ".
func JoinMensagens(ms []model.Mensagem) string {
	parts := make([]string, 0, len(ms))
	for _, m := range ms {
		switch {
		case m.Codigo == "" && m.Texto == "":
			continue
		case m.Codigo == "":
			parts = append(parts, m.Texto)
		default:
			parts = append(parts, m.Codigo+": "+m.Texto)
		}
	}
	return strings.Join(parts, ", ")
}
