package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/core-coin/vaultminter/internal/blockchain"
	"github.com/core-coin/vaultminter/internal/config"
	"github.com/core-coin/vaultminter/internal/dispatcher"
	"github.com/core-coin/vaultminter/internal/http_api"
	"github.com/core-coin/vaultminter/internal/keystore"
	"github.com/core-coin/vaultminter/internal/minter"
	"github.com/core-coin/vaultminter/internal/models"
	"github.com/core-coin/vaultminter/internal/notificator"
	"github.com/core-coin/vaultminter/internal/queue"
	"github.com/core-coin/vaultminter/internal/repository"
	"github.com/core-coin/vaultminter/internal/uploader"
	"github.com/core-coin/vaultminter/internal/vault"
	"github.com/core-coin/vaultminter/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "vaultminter",
		Usage: "Vaultminter mints campaign NFTs from prepaid vault wallets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "rabbitmq-url", Aliases: []string{"r"}, Usage: "RabbitMQ connection URL"},
			&cli.StringFlag{Name: "solana-rpc-url", Aliases: []string{"s"}, Usage: "Solana RPC URL"},
			&cli.IntFlag{Name: "api-port", Usage: "Ops HTTP port"},
			&cli.IntFlag{Name: "mint-concurrency", Usage: "Concurrent mint jobs"},
			&cli.IntFlag{Name: "prepare-concurrency", Usage: "Concurrent prepare jobs"},
			&cli.BoolFlag{Name: "refund-after-prepare", Usage: "Refund the vault surplus after a collection is prepared"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:      "enqueue",
				Usage:     "Publish a prepare, mint or reconcile job",
				ArgsUsage: "<prepare|mint|reconcile> <id>",
				Action:    enqueue,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the environment and applies flag overrides
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("rabbitmq-url") {
		cfg.RabbitMQURL = c.String("rabbitmq-url")
	}
	if c.IsSet("solana-rpc-url") {
		cfg.SolanaRPCURL = c.String("solana-rpc-url")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("mint-concurrency") {
		cfg.MintConcurrency = c.Int("mint-concurrency")
	}
	if c.IsSet("prepare-concurrency") {
		cfg.PrepareConcurrency = c.Int("prepare-concurrency")
	}
	if c.IsSet("refund-after-prepare") {
		cfg.RefundAfterPrepare = c.Bool("refund-after-prepare")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	return cfg, nil
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Vault key decryption
	masterKey, err := keystore.LoadMasterKey(ctx, cfg.VaultEncryptionKey, cfg.VaultEncryptionKeySecret, nil)
	if err != nil {
		return fmt.Errorf("failed to load vault encryption key: %w", err)
	}
	cipher, err := keystore.NewVaultCipher(masterKey)
	if err != nil {
		return fmt.Errorf("failed to initialize vault cipher: %w", err)
	}

	// Initialize blockchain service
	metadataUploader := uploader.NewIrysUploader(cfg.IrysUploaderURL, cfg.IrysAPIKey, log)
	solana := blockchain.NewSolana(cfg.RPCEndpoint(), metadataUploader, cfg.SolanaConfirmTimeout, log)
	funds := vault.NewFundManager(solana, cfg.TransferCostPerToken, cfg.MinimumReservedBuffer, log)

	alerts := newNotificator(cfg, log)
	minterService := minter.NewMinter(db, solana, cipher, funds, alerts, log, cfg)

	// Initialize queues
	broker, err := queue.Connect(ctx, cfg.RabbitMQURL, queue.Options{
		DeadLetterExchange: cfg.DeadLetterExchange,
		MaxAttempts:        cfg.JobMaxAttempts,
		RetryBackoff:       cfg.JobRetryBackoff,
		Prefetch:           maxInt(cfg.PrepareConcurrency, cfg.MintConcurrency, cfg.ReconcileConcurrency),
	}, log)
	if err != nil {
		return err
	}
	defer broker.Close()

	channels := []dispatcher.Channel{}
	for _, ch := range []struct {
		name        string
		concurrency int
	}{
		{cfg.PrepareQueueName, cfg.PrepareConcurrency},
		{cfg.MintQueueName, cfg.MintConcurrency},
		{cfg.ReconcileQueueName, cfg.ReconcileConcurrency},
	} {
		q, err := broker.Queue(ch.name)
		if err != nil {
			return err
		}
		defer q.Close()
		channels = append(channels, dispatcher.Channel{Queue: q, Concurrency: ch.concurrency})
	}

	brokerCheck := func(context.Context) error {
		if broker.IsClosed() {
			return errors.New("rabbitmq connection closed")
		}
		return nil
	}

	disp := dispatcher.NewDispatcher(minterService, alerts, log, channels...)
	disp.SetHeartbeat(dispatcher.DefaultHeartbeat, func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		return brokerCheck(ctx)
	})

	// Initialize API server
	apiServer := http_api.NewHTTPServer(disp, cfg.APIPort, log,
		http_api.HealthCheck{Name: "postgres", Check: db.Ping},
		http_api.HealthCheck{Name: "rabbitmq", Check: brokerCheck},
	)
	go apiServer.Start()

	brokerLost := make(chan error, 1)
	go func() {
		if amqpErr, ok := <-broker.NotifyClose(); ok && amqpErr != nil {
			log.Warnw("RabbitMQ connection closed", "error", amqpErr)
			brokerLost <- amqpErr
		}
	}()

	log.Infow("Vaultminter started",
		"prepare_queue", cfg.PrepareQueueName,
		"mint_queue", cfg.MintQueueName,
		"reconcile_queue", cfg.ReconcileQueueName)

	runErr := disp.Run(ctx)

	if err := apiServer.Shutdown(); err != nil {
		log.Errorw("Failed to shut down HTTP server", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("dispatcher stopped: %w", runErr)
	}
	select {
	case amqpErr := <-brokerLost:
		return fmt.Errorf("rabbitmq connection lost: %w", amqpErr)
	default:
	}

	log.Info("Vaultminter stopped")
	return nil
}

// enqueue publishes a single job for operators and scripts
func enqueue(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: vaultminter enqueue <prepare|mint|reconcile> <id>", 2)
	}
	kind, id := models.JobKind(c.Args().Get(0)), c.Args().Get(1)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateQueue(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	queueName, err := cfg.QueueName(kind)
	if err != nil {
		return err
	}

	var payload interface{}
	switch kind {
	case models.JobKindMint:
		payload = models.MintPayload{ClaimID: id}
	case models.JobKindPrepare:
		payload = models.PreparePayload{VaultID: id}
	default:
		payload = models.ReconcilePayload{VaultID: id}
	}
	job, err := queue.NewJob(kind, payload)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	broker, err := queue.Connect(c.Context, cfg.RabbitMQURL, queue.Options{
		DeadLetterExchange: cfg.DeadLetterExchange,
		MaxAttempts:        cfg.JobMaxAttempts,
		RetryBackoff:       cfg.JobRetryBackoff,
	}, log)
	if err != nil {
		return err
	}
	defer broker.Close()

	q, err := broker.Queue(queueName)
	if err != nil {
		return err
	}
	if err := q.Publish(c.Context, job); err != nil {
		return err
	}

	log.Infow("Job enqueued", "queue", queueName, "job", job.ID, "kind", kind)
	return nil
}

func newNotificator(cfg *config.Config, log *logger.Logger) *notificator.Notificator {
	var (
		telegram *notificator.TelegramNotificator
		email    *notificator.EmailNotificator
		err      error
	)
	if cfg.TelegramBotToken != "" {
		telegram, err = notificator.NewTelegramNotificator(log, cfg.TelegramBotToken, cfg.TelegramAlertChatID)
		if err != nil {
			log.Warnw("Telegram alerts disabled", "error", err)
			telegram = nil
		}
	}
	if cfg.SendgridAPIKey != "" {
		email, err = notificator.NewEmailNotificator(log, cfg.SendgridAPIKey, cfg.AlertEmailFrom, cfg.AlertEmailTo)
		if err != nil {
			log.Warnw("Email alerts disabled", "error", err)
			email = nil
		}
	}
	return notificator.NewNotificator(log, telegram, email)
}

func maxInt(values ...int) int {
	m := 0
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
