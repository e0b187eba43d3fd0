package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"

	"productsearch/internal/config"
	"productsearch/internal/di"
	"productsearch/internal/store"
)

var (
	chiLambda     *chiadapter.ChiLambdaV2
	container     *di.Container
	coldStart     = true
	coldStartTime time.Time
)

func init() {
	coldStartTime = time.Now()
	log.Println("lambda cold start initiated")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	container, err = di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize container: %v", err)
	}

	// Pre-warm the KV connection so the first real request doesn't pay
	// for it.
	go func() {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer warmCancel()
		_, _, _ = container.KV.Get(warmCtx, store.Keys{}.Feed(cfg.APIKeyPrefix))
	}()

	chiLambda = chiadapter.NewV2(container.Router)

	log.Printf("lambda cold start completed in %v", time.Since(coldStartTime))
}

// Handler adapts API Gateway v2 HTTP events onto the chi router.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	container.Logger.Info("lambda received request",
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("request_id", req.RequestContext.RequestID),
	)

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	} else {
		resp.Headers["X-Cold-Start"] = "false"
	}
	resp.Headers["X-Request-ID"] = req.RequestContext.RequestID

	if resp.StatusCode >= 500 {
		container.Logger.Error("lambda error response",
			zap.Int("status_code", resp.StatusCode),
			zap.String("path", req.RequestContext.HTTP.Path),
		)
	}

	return resp, err
}

func main() {
	lambda.Start(Handler)
}
