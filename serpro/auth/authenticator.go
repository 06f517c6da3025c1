package auth

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"os"
	"time"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/alapierre/go-serpro-client/serpro/keys"
	"github.com/alapierre/go-serpro-client/serpro/model"
	"github.com/alapierre/go-serpro-client/serpro/util"
	"github.com/go-faster/errors"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "serpro.auth")

// RoleType is sent on every authentication; software houses acting for taxpayers use TERCEIROS.
const RoleType = "TERCEIROS"

const DefaultTimeout = 30 * time.Second

type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
}

func (c Credentials) basic() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.ConsumerKey+":"+c.ConsumerSecret))
}

// Authenticator performs the client-credentials exchange over a mutual TLS channel.
type Authenticator struct {
	rest  *resty.Client
	url   string
	creds Credentials
}

type Option func(*Authenticator)

// WithURL overrides the identity endpoint base URL.
func WithURL(baseURL string) Option {
	return func(a *Authenticator) { a.url = baseURL + "/authenticate" }
}

func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) { a.rest.SetTimeout(d) }
}

// WithRootCA adds a PEM encoded CA to the trusted roots of the identity endpoint.
func WithRootCA(pemContent string) Option {
	return func(a *Authenticator) { a.rest.SetRootCertificateFromString(pemContent) }
}

// NewAuthenticator creates an authenticator presenting cert on every TLS handshake. cert may be nil
// when TLS client authentication is terminated elsewhere.
func NewAuthenticator(env serpro.Environment, cert *tls.Certificate, creds Credentials, opts ...Option) *Authenticator {
	rest := resty.New().SetTimeout(DefaultTimeout)
	if cert != nil {
		rest.SetCertificates(*cert)
	}
	if util.HttpTraceEnabled() {
		rest.SetDebug(true).EnableTrace()
	}

	a := &Authenticator{
		rest:  rest,
		url:   env.AuthURL() + "/authenticate",
		creds: creds,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewAuthenticatorFromFile loads the client certificate (PKCS#12, or PEM with an encrypted PKCS#8 key)
// and creates the authenticator. A missing file is a configuration error, an unreadable one an
// authentication error.
func NewAuthenticatorFromFile(env serpro.Environment, certPath, keyPath, certPassword string, creds Credentials, opts ...Option) (*Authenticator, error) {
	if creds.ConsumerKey == "" || creds.ConsumerSecret == "" {
		return nil, serpro.Markf(serpro.ErrConfiguration, "consumer key and secret are required")
	}

	cert, err := keys.LoadClientCertificate(certPath, keyPath, []byte(certPassword))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, serpro.Mark(serpro.ErrConfiguration, err, "client certificate")
		}
		return nil, serpro.Mark(serpro.ErrAuthentication, err, "invalid client certificate")
	}

	if cert.Leaf != nil {
		logger.WithFields(logrus.Fields{
			"subject":   cert.Leaf.Subject.CommonName,
			"not_after": cert.Leaf.NotAfter,
		}).Debug("Client certificate loaded")
	}

	return NewAuthenticator(env, &cert, creds, opts...), nil
}

// Authenticate exchanges the consumer credentials for a fresh token pair.
func (a *Authenticator) Authenticate(ctx context.Context) (model.TokenPair, error) {
	logger.Debug("Requesting new token pair")

	resp, err := a.rest.R().
		SetContext(ctx).
		SetHeader("Authorization", a.creds.basic()).
		SetHeader("Role-Type", RoleType).
		SetHeader("Accept", "application/json").
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post(a.url)
	if err != nil {
		return model.TokenPair{}, serpro.Mark(serpro.ErrAuthentication, err, "identity endpoint request failed")
	}

	if !resp.IsSuccess() {
		return model.TokenPair{}, serpro.Markf(serpro.ErrAuthentication,
			"identity endpoint returned http status %d: %s", resp.StatusCode(), abbreviate(resp.String()))
	}

	var body model.AuthenticateResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return model.TokenPair{}, serpro.Mark(serpro.ErrAuthentication, err, "decode authenticate response")
	}

	switch {
	case body.AccessToken == "":
		return model.TokenPair{}, serpro.Markf(serpro.ErrAuthentication, "authenticate response without access_token")
	case body.JwtToken == "":
		return model.TokenPair{}, serpro.Markf(serpro.ErrAuthentication, "authenticate response without jwt_token")
	case body.ExpiresIn <= 0:
		return model.TokenPair{}, serpro.Markf(serpro.ErrAuthentication, "authenticate response without expires_in")
	}

	logger.WithField("expires_in", body.ExpiresIn).Info("Token obtained")

	return model.TokenPair{
		AccessToken: body.AccessToken,
		JwtToken:    body.JwtToken,
		ExpiresIn:   time.Duration(body.ExpiresIn) * time.Second,
		IssuedAt:    time.Now(),
	}, nil
}

func abbreviate(s string) string {
	const limit = 256
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
