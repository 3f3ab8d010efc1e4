package main

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/sirupsen/logrus"

	"example/comment-search-api/app"
	"example/comment-search-api/app/config"
	"example/comment-search-api/logging"
)

var ginLambda *ginadapter.GinLambda

// init runs once per Lambda container (cold start)
func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logging.New(cfg.Logs)

	container := app.NewContainer(cfg, log)
	container.InlineUsage = true
	deps, err := container.Init(context.Background())
	if err != nil {
		log.WithError(err).Fatal("failed to initialize dependencies")
	}

	ginLambda = ginadapter.New(app.NewRouter(cfg, deps))
}

// Handler is the Lambda entrypoint for API Gateway REST/HTTP API (proxy integration)
func Handler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(Handler)
}
