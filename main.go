package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alapierre/go-serpro-client/serpro/api"
	"github.com/alapierre/go-serpro-client/serpro/auth"
	"github.com/alapierre/go-serpro-client/serpro/batch"
	"github.com/alapierre/go-serpro-client/serpro/config"
	"github.com/alapierre/go-serpro-client/serpro/regime"
	"github.com/alapierre/go-serpro-client/serpro/sheet"
	"github.com/alapierre/go-serpro-client/serpro/sink"
	"github.com/alapierre/go-serpro-client/serpro/storage"
	"github.com/alapierre/go-serpro-client/serpro/store"
	"github.com/alapierre/go-serpro-client/serpro/util"
	"github.com/sirupsen/logrus"
)

const (
	exitOK = iota
	exitFatal
	exitRowsFailed
)

var logger = logrus.WithField("component", "main")

func main() {
	cfg, err := config.Load()
	if err != nil {
		util.ConfigureLogging("info")
		logger.WithError(err).Error("Configuração inválida")
		os.Exit(exitFatal)
	}
	util.ConfigureLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Execução interrompida")
	}
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config) (int, error) {
	logger.WithField("env", cfg.Environment.Name()).Info("Iniciando opção pelo regime de apuração")

	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return exitFatal, err
	}
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return exitFatal, err
	}
	defer func() { _ = db.Close() }()

	authenticator, err := auth.NewAuthenticatorFromFile(
		cfg.Environment,
		cfg.CertPath(),
		cfg.KeyPath(),
		cfg.CertPassword,
		auth.Credentials{ConsumerKey: cfg.ConsumerKey, ConsumerSecret: cfg.ConsumerSecret},
		auth.WithTimeout(cfg.HTTPTimeout),
	)
	if err != nil {
		return exitFatal, err
	}
	tokens := auth.NewTokenProvider(authenticator)

	builder, err := regime.NewBuilder(cfg.Contratante, cfg.AutorPedido)
	if err != nil {
		return exitFatal, err
	}

	client := api.NewClient(cfg.Environment, tokens, api.WithTimeout(cfg.HTTPTimeout))

	receipts, err := receiptStorage(ctx, cfg)
	if err != nil {
		return exitFatal, err
	}

	src, err := sheet.Open(cfg.Spreadsheet, cfg.Sheet)
	if err != nil {
		return exitFatal, err
	}

	runner := batch.NewRunner(builder, client, sink.New(store.NewRequisicaoRepo(db), receipts),
		batch.Config{MaxConsecutiveAuthFailures: cfg.MaxAuthFailures})

	report, err := runner.Run(ctx, src)
	if report != nil {
		writeReport(cfg.OutputDir, report)
	}
	if err != nil {
		return exitFatal, err
	}
	if !report.OK() {
		return exitRowsFailed, report.Aborted
	}
	return exitOK, nil
}

// receiptStorage always keeps a local copy; S3 is added when a bucket is configured.
func receiptStorage(ctx context.Context, cfg *config.Config) (storage.ReceiptStorage, error) {
	local, err := storage.NewLocalStorage(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	if cfg.S3.Bucket == "" {
		return local, nil
	}

	remote, err := storage.NewS3Storage(ctx, cfg.S3)
	if err != nil {
		return nil, err
	}
	logger.WithField("bucket", cfg.S3.Bucket).Info("Demonstrativos também serão enviados ao S3")
	return storage.Multi{local, remote}, nil
}

func writeReport(dir string, report *batch.Report) {
	path := filepath.Join(dir, "relatorio_"+report.RunID.String()+".csv")

	f, err := os.Create(path)
	if err != nil {
		logger.WithError(err).Error("Erro ao criar relatório")
		return
	}
	defer func() { _ = f.Close() }()

	if err := report.WriteCSV(f); err != nil {
		logger.WithError(err).Error("Erro ao gravar relatório")
		return
	}
	logger.WithField("path", path).Info("Relatório gravado")
}
