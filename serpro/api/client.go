package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/alapierre/go-serpro-client/serpro/util"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	DeclararPath = "/Declarar"

	msgNoData        = "Nenhum dado encontrado."
	msgUnknownServer = "Erro desconhecido do servidor"
)

// TokenSource provides the bearer/JWT pair for each call; *auth.TokenProvider implements it.
type TokenSource interface {
	Tokens(ctx context.Context) (model.TokenPair, error)
}

type invalidator interface {
	Invalidate()
}

// Client sends envelopes to the Integra Contador gateway.
type Client struct {
	rest    *resty.Client
	baseURL string
	tokens  TokenSource
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.rest.SetTimeout(d) }
}

func NewClient(env serpro.Environment, tokens TokenSource, opts ...Option) *Client {
	rest := resty.New().SetTimeout(30 * time.Second)
	if util.HttpTraceEnabled() {
		rest.EnableTrace()
	}

	c := &Client{rest: rest, baseURL: env.GatewayURL(), tokens: tokens}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts the envelope to the Declarar endpoint. Every problem, including transport and
// authentication errors, is reported as a Failure outcome; Submit never returns an error.
func (c *Client) Submit(ctx context.Context, envelope *model.Envelope) model.Outcome {
	log := serpro.Logger(ctx, "serpro.api").WithField("contribuinte", envelope.Contribuinte.Numero)

	tokens, err := c.tokens.Tokens(ctx)
	if err != nil {
		log.WithError(err).Error("Erro ao obter o token de autenticação")
		return model.Failure("Erro ao obter token de autenticação: "+err.Error(), err)
	}
	log.Debug("Token de autenticação obtido")

	url := c.baseURL + DeclararPath
	log.WithField("url", url).Info("Fazendo requisição")

	resp, err := c.rest.R().
		SetContext(ctx).
		SetAuthToken(tokens.AccessToken).
		SetHeader("jwt_token", tokens.JwtToken).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(envelope).
		Post(url)
	if err != nil {
		err = serpro.Mark(serpro.ErrTransport, err, "declarar")
		log.WithError(err).Error("Erro durante a requisição")
		return model.Failure("Erro na requisição: "+err.Error(), err)
	}

	logTraceInfo(log, resp)
	log.WithField("status", resp.StatusCode()).Info("Status da resposta")

	if resp.StatusCode() == http.StatusOK {
		return c.handleOK(log, resp.Body())
	}
	return c.handleError(log, resp)
}

func (c *Client) handleOK(log *logrus.Entry, body []byte) model.Outcome {
	res, err := decodeEnvelope(body)
	if err != nil {
		err = serpro.Mark(serpro.ErrResponseFormat, err, "declarar")
		log.WithError(err).Error("Resposta em formato inesperado")
		return model.Failure("Erro ao processar resposta: "+err.Error(), err)
	}

	msg := JoinMensagens(res.Mensagens)

	if res.Dados == "" {
		if msg == "" {
			msg = msgNoData
		}
		return model.Failure(msg, nil)
	}

	dados, err := decodeDeclaracao(res.Dados)
	if err != nil {
		err = serpro.Mark(serpro.ErrResponseFormat, err, "dados")
		log.WithError(err).Error("Erro ao processar campo 'dados' da resposta")
		return model.Failure("Erro ao processar 'dados': "+err.Error(), err)
	}
	if *dados == (model.Declaracao{}) {
		// "{}" or a document without any of the expected fields
		if msg == "" {
			msg = msgNoData
		}
		return model.Failure(msg, nil)
	}

	log.Info("Requisição bem-sucedida")
	return model.Success(dados, msg)
}

func (c *Client) handleError(log *logrus.Entry, resp *resty.Response) model.Outcome {
	reqErr := &RequestError{StatusCode: resp.StatusCode(), Body: resp.String()}

	// the body is best effort: gateways in front of the API answer with HTML
	if res, err := decodeEnvelope(resp.Body()); err == nil {
		reqErr.Mensagens = res.Mensagens
	}

	msg := JoinMensagens(reqErr.Mensagens)
	if msg == "" {
		msg = msgUnknownServer
	}

	var cause error = reqErr
	if resp.StatusCode() == http.StatusUnauthorized {
		if inv, ok := c.tokens.(invalidator); ok {
			inv.Invalidate()
		}
		cause = serpro.Mark(serpro.ErrAuthentication, reqErr, "declarar")
	}

	log.WithFields(logrus.Fields{
		"status":   resp.StatusCode(),
		"mensagem": msg,
	}).Error("Requisição falhou")
	return model.Failure(msg, cause)
}

func logTraceInfo(log *logrus.Entry, resp *resty.Response) {
	if !util.HttpTraceEnabled() {
		return
	}

	ti := resp.Request.TraceInfo()
	log.WithFields(logrus.Fields{
		"dns_lookup":    ti.DNSLookup,
		"conn_time":     ti.ConnTime,
		"tls_handshake": ti.TLSHandshake,
		"server_time":   ti.ServerTime,
		"total_time":    ti.TotalTime,
		"conn_reused":   ti.IsConnReused,
		"body":          resp.String(),
	}).Debug("Response trace")
}
