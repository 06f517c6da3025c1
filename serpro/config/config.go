// Package config loads the run settings from the environment and an optional .env file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alapierre/go-serpro-client/serpro"
	"github.com/alapierre/go-serpro-client/serpro/storage"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variable names.
const (
	DatabaseURL           = "DATABASE_URL"
	CaminhoCertificado    = "CAMINHO_CERTIFICADO"
	NomeCertificado       = "NOME_CERTIFICADO"
	SenhaCertificado      = "SENHA_CERTIFICADO"
	ChavePrivada          = "CHAVE_PRIVADA"
	ConsumerKey           = "CONSUMER_KEY"
	ConsumerSecret        = "CONSUMER_SECRET"
	Planilha              = "PLANILHA"
	PlanilhaAba           = "PLANILHA_ABA"
	CaminhoRespostas      = "CAMINHO_RESPOSTAS"
	ContratanteNumero     = "CONTRATANTE_NUMERO"
	AutorPedidoNumero     = "AUTOR_PEDIDO_NUMERO"
	SerproEnv             = "SERPRO_ENV"
	HttpTimeout           = "HTTP_TIMEOUT"
	MaxFalhasAutenticacao = "MAX_FALHAS_AUTENTICACAO"
	S3Bucket              = "S3_BUCKET"
	S3Region              = "S3_REGION"
	S3Endpoint            = "S3_ENDPOINT"
	S3Prefix              = "S3_PREFIX"
	S3AccessKey           = "S3_ACCESS_KEY"
	S3SecretKey           = "S3_SECRET_KEY"
	LogLevel              = "SERPRO_LOG_LEVEL"
)

var required = []string{
	DatabaseURL,
	CaminhoCertificado,
	NomeCertificado,
	SenhaCertificado,
	ConsumerKey,
	ConsumerSecret,
	Planilha,
	ContratanteNumero,
	AutorPedidoNumero,
}

type Config struct {
	DatabaseURL string

	CertDir      string
	CertName     string
	CertPassword string
	// KeyFile is the encrypted PKCS#8 key accompanying a PEM certificate.
	KeyFile string

	ConsumerKey    string
	ConsumerSecret string

	Spreadsheet string
	Sheet       string
	OutputDir   string

	Contratante string
	AutorPedido string

	Environment     serpro.Environment
	HTTPTimeout     time.Duration
	MaxAuthFailures int

	S3       storage.S3Config
	LogLevel string
}

// CertPath is the full path of the client certificate.
func (c *Config) CertPath() string {
	return filepath.Join(c.CertDir, c.CertName)
}

// KeyPath resolves KeyFile against the certificate directory; empty when no key file is set.
func (c *Config) KeyPath() string {
	if c.KeyFile == "" || filepath.IsAbs(c.KeyFile) {
		return c.KeyFile
	}
	return filepath.Join(c.CertDir, c.KeyFile)
}

// Load reads the given dotenv files (".env" when none) without overriding variables already set,
// then resolves every setting. All missing required variables are reported at once.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, serpro.Mark(serpro.ErrConfiguration, err, "load "+f)
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault(CaminhoRespostas, "./respostas")
	v.SetDefault(SerproEnv, "prod")
	v.SetDefault(HttpTimeout, "30s")
	v.SetDefault(MaxFalhasAutenticacao, 3)
	v.SetDefault(LogLevel, "info")

	var missing []string
	for _, key := range required {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, serpro.Markf(serpro.ErrConfiguration, "missing environment variables: %s", strings.Join(missing, ", "))
	}

	cfg := &Config{
		DatabaseURL:    v.GetString(DatabaseURL),
		CertDir:        v.GetString(CaminhoCertificado),
		CertName:       v.GetString(NomeCertificado),
		CertPassword:   v.GetString(SenhaCertificado),
		KeyFile:        v.GetString(ChavePrivada),
		ConsumerKey:    v.GetString(ConsumerKey),
		ConsumerSecret: v.GetString(ConsumerSecret),
		Spreadsheet:    v.GetString(Planilha),
		Sheet:          v.GetString(PlanilhaAba),
		OutputDir:      v.GetString(CaminhoRespostas),
		Contratante:    v.GetString(ContratanteNumero),
		AutorPedido:    v.GetString(AutorPedidoNumero),
		S3: storage.S3Config{
			Bucket:   v.GetString(S3Bucket),
			Region:   v.GetString(S3Region),
			Endpoint: v.GetString(S3Endpoint),
			Prefix:   v.GetString(S3Prefix),

			AccessKey: v.GetString(S3AccessKey),
			SecretKey: v.GetString(S3SecretKey),
		},
		LogLevel: v.GetString(LogLevel),
	}

	if err := cfg.Environment.UnmarshalText([]byte(v.GetString(SerproEnv))); err != nil {
		return nil, serpro.Mark(serpro.ErrConfiguration, err, SerproEnv)
	}

	timeout, err := time.ParseDuration(v.GetString(HttpTimeout))
	if err != nil || timeout <= 0 {
		return nil, serpro.Markf(serpro.ErrConfiguration, "%s: invalid duration %q", HttpTimeout, v.GetString(HttpTimeout))
	}
	cfg.HTTPTimeout = timeout

	maxFailures, err := strconv.Atoi(strings.TrimSpace(v.GetString(MaxFalhasAutenticacao)))
	if err != nil || maxFailures < 0 {
		return nil, serpro.Markf(serpro.ErrConfiguration, "%s: invalid value %q", MaxFalhasAutenticacao, v.GetString(MaxFalhasAutenticacao))
	}
	cfg.MaxAuthFailures = maxFailures

	return cfg, nil
}
