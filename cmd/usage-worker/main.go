// Command usage-worker applies usage increments queued on SQS by the API.
package main

import (
	"context"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sirupsen/logrus"

	"example/comment-search-api/app"
	"example/comment-search-api/app/config"
	"example/comment-search-api/logging"
	"example/comment-search-api/usage/sqsqueue"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logging.New(cfg.Logs)

	if cfg.Usage.QueueURL == "" {
		log.Fatal("QUEUE_URL environment variable is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	accounts, err := app.OpenAccounts(ctx, cfg.Store)
	if err != nil {
		log.WithError(err).Fatal("failed to open account store")
	}
	defer accounts.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to load AWS config")
	}

	consumer := sqsqueue.NewConsumer(sqs.NewFromConfig(awsCfg), cfg.Usage.QueueURL, accounts, log)
	if err := consumer.Run(ctx); err != nil {
		log.WithError(err).Error("consumer stopped")
	}
	log.Info("usage worker stopped")
}
