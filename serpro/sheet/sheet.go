// Package sheet reads regime election requests from an xlsx workbook.
package sheet

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/alapierre/go-serpro-client/serpro/regime"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

var logger = logrus.WithField("component", "serpro.sheet")

// Header names of the input workbook.
const (
	ColCNPJ             = "CNPJ"
	ColAnoOpcao         = "Ano da Opção"
	ColTipoRegime       = "Tipo Regime"
	ColDescritivoRegime = "Descritivo Regime"
	// ColTipoContribuinte is optional; rows without it are entities (CNPJ). It is the only way to send a CPF.
	ColTipoContribuinte = "Tipo Contribuinte"
)

var required = []string{ColCNPJ, ColAnoOpcao, ColTipoRegime, ColDescritivoRegime}

// Row holds the raw cell text of one data row.
type Row struct {
	// Index is the 0-based position among data rows; it names the receipt file.
	Index int
	// Line is the worksheet line number, as shown by spreadsheet editors.
	Line int

	CNPJ             string
	AnoOpcao         string
	TipoRegime       string
	DescritivoRegime string
	TipoContribuinte string
}

// RowSource is a pull iterator over input rows. Next returns io.EOF when there are no more rows.
type RowSource interface {
	Next() (*Row, error)
}

// Workbook is a RowSource backed by one worksheet, loaded eagerly.
type Workbook struct {
	sheet   string
	rows    [][]string
	columns map[string]int

	pos   int
	index int
	total int
}

// Open loads the worksheet sheetName (the first one when empty) and maps its header row.
func Open(path, sheetName string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, serpro.Mark(serpro.ErrConfiguration, err, "open spreadsheet "+path)
	}
	defer func() { _ = f.Close() }()

	if sheetName == "" {
		sheetName = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, serpro.Markf(serpro.ErrConfiguration, "sheet %q not found in %s", sheetName, path)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, serpro.Mark(serpro.ErrConfiguration, err, "read sheet "+sheetName)
	}

	return newWorkbook(sheetName, rows)
}

func newWorkbook(sheetName string, rows [][]string) (*Workbook, error) {
	w := &Workbook{sheet: sheetName, rows: rows}

	// header is the first non-blank line
	for w.pos < len(rows) && blank(rows[w.pos]) {
		w.pos++
	}
	if w.pos == len(rows) {
		return nil, serpro.Markf(serpro.ErrValidation, "sheet %q has no header row", sheetName)
	}

	w.columns = make(map[string]int)
	for i, name := range rows[w.pos] {
		name = strings.TrimSpace(name)
		for _, known := range append(required, ColTipoContribuinte) {
			if strings.EqualFold(name, known) {
				w.columns[known] = i
			}
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := w.columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, serpro.Markf(serpro.ErrValidation, "sheet %q: missing columns %s", sheetName, strings.Join(missing, ", "))
	}

	w.pos++
	for _, r := range rows[w.pos:] {
		if !blank(r) {
			w.total++
		}
	}

	logger.WithFields(logrus.Fields{
		"sheet": sheetName,
		"rows":  w.total,
	}).Info("Planilha carregada")
	return w, nil
}

// Total is the number of non-blank data rows.
func (w *Workbook) Total() int {
	return w.total
}

func (w *Workbook) Next() (*Row, error) {
	for w.pos < len(w.rows) {
		cells := w.rows[w.pos]
		w.pos++
		if blank(cells) {
			continue
		}

		row := &Row{
			Index:            w.index,
			Line:             w.pos,
			CNPJ:             w.cell(cells, ColCNPJ),
			AnoOpcao:         w.cell(cells, ColAnoOpcao),
			TipoRegime:       w.cell(cells, ColTipoRegime),
			DescritivoRegime: w.cell(cells, ColDescritivoRegime),
			TipoContribuinte: w.cell(cells, ColTipoContribuinte),
		}
		w.index++
		return row, nil
	}
	return nil, io.EOF
}

func (w *Workbook) cell(cells []string, column string) string {
	i, ok := w.columns[column]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Request converts the raw cells into a request. Field problems are reported as serpro.ErrValidation.
func (r *Row) Request() (model.TaxpayerRequest, error) {
	if regime.Digits(r.CNPJ) == "" {
		return model.TaxpayerRequest{}, serpro.Markf(serpro.ErrValidation, "%s is empty", ColCNPJ)
	}

	ano, err := ParseInt(r.AnoOpcao)
	if err != nil {
		return model.TaxpayerRequest{}, serpro.Mark(serpro.ErrValidation, err, ColAnoOpcao)
	}
	tipoRegime, err := ParseInt(r.TipoRegime)
	if err != nil {
		return model.TaxpayerRequest{}, serpro.Mark(serpro.ErrValidation, err, ColTipoRegime)
	}

	tipo := model.PessoaJuridica
	if r.TipoContribuinte != "" {
		n, err := ParseInt(r.TipoContribuinte)
		if err != nil || (n != int(model.PessoaFisica) && n != int(model.PessoaJuridica)) {
			return model.TaxpayerRequest{}, serpro.Markf(serpro.ErrValidation, "%s: invalid value %q", ColTipoContribuinte, r.TipoContribuinte)
		}
		tipo = model.TipoContribuinte(n)
	}

	return model.TaxpayerRequest{
		Numero:           regime.FormatDocument(r.CNPJ),
		Tipo:             tipo,
		AnoOpcao:         ano,
		TipoRegime:       tipoRegime,
		DescritivoRegime: r.DescritivoRegime,
	}, nil
}

// ParseInt accepts integers written as "2024" or "2024.0" within the int32 range.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
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
