package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/delegatedssl/platform/core/config"
	"github.com/delegatedssl/platform/core/dcv"
	"github.com/delegatedssl/platform/core/dns"
	"github.com/delegatedssl/platform/core/email"
	"github.com/delegatedssl/platform/core/httpclient"
	"github.com/delegatedssl/platform/core/issuance"
	"github.com/delegatedssl/platform/core/logger"
	"github.com/delegatedssl/platform/core/queue"
	"github.com/delegatedssl/platform/integration/database/pg"
	"github.com/delegatedssl/platform/integration/database/redis"
	"github.com/delegatedssl/platform/integration/email/postmark"
)

type appConfig struct {
	Env string `env:"APP_ENV" envDefault:"development"`

	PG       pg.Config
	Redis    redis.Config
	Queue    queue.Config
	DNS      dns.Config
	Pipeline dcv.Config
	ACME     issuance.Config

	RenewalScanInterval time.Duration `env:"RENEWAL_SCAN_INTERVAL" envDefault:"1h"`
	DevEmailDir         string        `env:"DEV_EMAIL_DIR" envDefault:"./dev_emails"`
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(logger.Component("worker"))

	var cfg appConfig
	config.MustLoad(&cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker exited with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("worker stopped")
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, cfg.PG, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	domainStore := pg.NewDomainStore(pool)
	queueStorage := pg.NewQueueStorage(pool)

	enqueuer, err := queue.NewEnqueuer(queueStorage)
	if err != nil {
		return err
	}

	httpClient := httpclient.New(httpclient.WithLogger(log))
	resolver := dns.NewResolver(httpClient,
		dns.WithEndpoint(cfg.DNS.Endpoint),
		dns.WithResolverLogger(log))

	issuer, err := issuance.NewACMEIssuer(cfg.ACME.AccountEmail, pg.NewChallengeZone(pool),
		issuance.WithDirectoryURL(cfg.ACME.DirectoryURL))
	if err != nil {
		return err
	}

	sender := buildSender(cfg, log)

	pipeline, err := dcv.NewPipeline(domainStore, resolver, issuer, enqueuer, sender,
		dcv.WithRecheckInterval(cfg.Pipeline.RecheckInterval),
		dcv.WithAttemptGuard(redis.NewAttemptGuard(redisClient)),
		dcv.WithPipelineLogger(log))
	if err != nil {
		return err
	}

	worker, err := queue.NewWorkerFromConfig(cfg.Queue, queueStorage,
		queue.WithWorkerLogger(log))
	if err != nil {
		return err
	}
	if err := worker.RegisterHandlers(pipeline.Handlers()...); err != nil {
		return err
	}

	notifier, err := dcv.NewDeadLetterNotifier(domainStore, enqueuer,
		dcv.WithNotifierLogger(log))
	if err != nil {
		return err
	}
	dlqConsumer, err := queue.NewDLQConsumerFromConfig(cfg.Queue, queueStorage, notifier,
		queue.WithDLQLogger(log))
	if err != nil {
		return err
	}

	scanner, err := dcv.NewRenewalScanner(domainStore, enqueuer,
		dcv.WithScannerLogger(log))
	if err != nil {
		return err
	}

	scheduler, err := queue.NewSchedulerFromConfig(cfg.Queue, queueStorage,
		queue.WithSchedulerLogger(log))
	if err != nil {
		return err
	}
	if err := scheduler.AddScan("renewal_scan", cfg.RenewalScanInterval, scanner.Scan); err != nil {
		return err
	}

	log.Info("worker starting", slog.String("env", cfg.Env))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(ctx))
	g.Go(dlqConsumer.Run(ctx))
	g.Go(scheduler.Run(ctx))
	return g.Wait()
}

// buildSender picks the transactional provider in production and the
// disk-backed dev sender everywhere else. Postmark config is loaded
// lazily so development environments need no provider credentials.
func buildSender(cfg appConfig, log *slog.Logger) email.Sender {
	if cfg.Env == "production" {
		var pmCfg postmark.Config
		config.MustLoad(&pmCfg)
		return postmark.MustNewClient(pmCfg)
	}
	log.Info("using development email sender", slog.String("dir", cfg.DevEmailDir))
	return email.NewDevSender(cfg.DevEmailDir)
}
