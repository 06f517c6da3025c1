package model

// Outcome is the result of one API call: either Success or Failure, never both.
type Outcome struct {
	Dados    *Declaracao
	Mensagem string
	// Cause is set for failures only.
	Cause error
}

func Success(dados *Declaracao, mensagem string) Outcome {
	return Outcome{Dados: dados, Mensagem: mensagem}
}

func Failure(mensagem string, cause error) Outcome {
	return Outcome{Mensagem: mensagem, Cause: cause}
}

func (o Outcome) OK() bool {
	return o.Dados != nil
}
