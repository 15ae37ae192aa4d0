package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estimator/internal/db"
	"estimator/internal/memstore"
	"estimator/internal/notify"
	"estimator/internal/reconcile"
	"estimator/internal/seed"
	"estimator/internal/server"
	"estimator/internal/storage"
	"estimator/internal/store"
	"estimator/internal/submission"
	"estimator/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Start the HTTP server",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "store",
			Usage: "Backing store, postgres or memory",
			Value: storePostgres,
		},
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "Apply the embedded schema before serving",
		},
	},
	Action: serve,
}

type customerRepository interface {
	submission.CustomerStore
	server.CustomerRepository
	seed.CustomerUpserter
}

type documentRepository interface {
	server.DocumentRepository
	reconcile.DocumentStore
}

// estimateReads serves estimate read-back from the three SQL repositories.
type estimateReads struct {
	*store.EstimateRepository
	*store.RevisionRepository
	*store.LineItemRepository
}

type repositories struct {
	customers customerRepository
	reads     server.EstimateReader
	estimates submission.EstimateStore
	revisions submission.RevisionStore
	lineItems submission.LineItemStore
	documents documentRepository

	close func()
}

func openRepositories(ctx context.Context, kind string, config *types.Config, migrate bool, logger *logrus.Logger) (*repositories, error) {
	switch kind {
	case storeMemory:
		mem := memstore.New()
		n, err := seed.SeedCustomers(ctx, mem)
		if err != nil {
			return nil, err
		}
		logger.WithField("customers", n).Warn("using in-memory store, data is lost on exit")

		return &repositories{
			customers: mem,
			reads:     mem,
			estimates: mem,
			revisions: mem,
			lineItems: mem,
			documents: mem,
			close:     func() {},
		}, nil

	case storePostgres:
		pool, err := db.Connect(ctx, config)
		if err != nil {
			return nil, err
		}

		if migrate {
			if err := db.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			logger.Info("schema applied")
		}

		estimates := store.NewEstimateRepository(pool)
		revisions := store.NewRevisionRepository(pool)
		lineItems := store.NewLineItemRepository(pool)

		return &repositories{
			customers: store.NewCustomerRepository(pool),
			reads:     estimateReads{estimates, revisions, lineItems},
			estimates: estimates,
			revisions: revisions,
			lineItems: lineItems,
			documents: store.NewDocumentRepository(pool),
			close:     pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown store %q, expected %s or %s", kind, storePostgres, storeMemory)
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cCtx)

	kind := cCtx.String("store")
	config, err := loadConfig(cCtx, kind == storePostgres)
	if err != nil {
		return err
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return err
	}

	repos, err := openRepositories(ctx, kind, config, cCtx.Bool("migrate"), logger)
	if err != nil {
		return err
	}
	defer repos.close()

	files := storage.NewS3Storage(s3.NewFromConfig(awsConfig), config.S3BucketName)

	var notifier submission.Notifier
	webhook := notify.NewWebhook(config.NotifyWebhookURL, time.Duration(config.NotifyWebhookTimeout)*time.Second, logger)
	if webhook.Enabled() {
		notifier = webhook
	}

	orchestrator := submission.New(
		submission.Stores{
			Customers: repos.customers,
			Estimates: repos.estimates,
			Revisions: repos.revisions,
			LineItems: repos.lineItems,
		},
		reconcile.New(repos.documents, logger),
		notifier,
		submission.NewGuard(),
		logger,
		submission.Options{
			MaxIDAttempts: config.MaxIDAttempts,
			StepTimeout:   time.Duration(config.SubmitTimeoutSec) * time.Second,
		},
	)

	srv, err := server.New(
		config,
		logger,
		repos.customers,
		repos.reads,
		repos.documents,
		files,
		orchestrator,
	)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
