package api

import (
	"fmt"

	"github.com/alapierre/go-serpro-client/serpro/model"
)

// RequestError describes a non-200 answer of the gateway.
type RequestError struct {
	StatusCode int
	Mensagens  []model.Mensagem
	Body       string
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status: %d message: %s", r.StatusCode, JoinMensagens(r.Mensagens))
}
