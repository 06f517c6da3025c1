package serpro

import (
	"fmt"
	"strings"
)

type Environment int

const (
	Prod Environment = iota
	Trial
)

// AuthURL is the identity endpoint base, shared by every environment.
func (e Environment) AuthURL() string {
	return "https://autenticacao.sapi.serpro.gov.br"
}

func (e Environment) GatewayURL() string {
	switch e {
	case Prod:
		return "https://gateway.apiserpro.serpro.gov.br/integra-contador/v1"
	case Trial:
		return "https://gateway.apiserpro.serpro.gov.br/integra-contador-trial/v1"
	}
	panic("Invalid environment")
}

func (e Environment) Name() string {
	switch e {
	case Prod:
		return "prod"
	case Trial:
		return "trial"
	}
	panic("Invalid environment")
}

func (e *Environment) UnmarshalText(text []byte) error {
	val := strings.ToLower(strings.TrimSpace(string(text)))

	switch val {
	case "prod", "":
		*e = Prod
	case "trial":
		*e = Trial
	default:
		return fmt.Errorf("invalid SERPRO_ENV: %q (allowed: prod, trial)", val)
	}
	return nil
}
