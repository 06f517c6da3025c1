package model

// TipoContribuinte identifies the taxpayer document kind.
type TipoContribuinte int

const (
	PessoaFisica   TipoContribuinte = 1 // CPF
	PessoaJuridica TipoContribuinte = 2 // CNPJ
)

// TaxpayerRequest is one spreadsheet row after field parsing.
type TaxpayerRequest struct {
	Numero           string
	Tipo             TipoContribuinte
	AnoOpcao         int
	TipoRegime       int
	DescritivoRegime string
}

type Identificacao struct {
	Numero string           `json:"numero"`
	Tipo   TipoContribuinte `json:"tipo"`
}

type PedidoDados struct {
	IdSistema     string `json:"idSistema"`
	IdServico     string `json:"idServico"`
	VersaoSistema string `json:"versaoSistema"`
	// Dados is the business payload encoded as a JSON string.
	Dados string `json:"dados"`
}

// Envelope is the request body of the Integra Contador Declarar endpoint.
type Envelope struct {
	Contratante      Identificacao `json:"contratante"`
	AutorPedidoDados Identificacao `json:"autorPedidoDados"`
	Contribuinte     Identificacao `json:"contribuinte"`
	PedidoDados      PedidoDados   `json:"pedidoDados"`
}

// OpcaoRegime is the inner payload of EFETUAROPCAOREGIME101.
type OpcaoRegime struct {
	AnoOpcao          int
	TipoRegime        int
	DescritivoRegime  string
	DeAcordoResolucao bool
}

// Declaracao is the parsed "dados" of a successful election.
type Declaracao struct {
	CnpjMatriz       string
	AnoCalendario    int
	RegimeEscolhido  string
	DataHoraOpcao    string
	DemonstrativoPdf string
}

// HasPdf reports whether the response carries a receipt.
func (d *Declaracao) HasPdf() bool {
	return d != nil && d.DemonstrativoPdf != ""
}

// Mensagem is one entry of the provider's message list.
type Mensagem struct {
	Codigo string
	Texto  string
}
