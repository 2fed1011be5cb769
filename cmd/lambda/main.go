package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/infrastructure/config"
	"github.com/Hampusfredrik/mindmap/infrastructure/di"
	"github.com/Hampusfredrik/mindmap/interfaces/http/rest/middleware"
)

var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	container *di.Container

	coldStart     = true
	coldStartTime time.Time
)

// setup runs once per execution environment, during cold start
func setup() {
	coldStartTime = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// The container lives as long as the execution environment, so its
	// cleanup never runs
	container, _, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	chiRouter, ok := container.Handler.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
		zap.String("storage", container.Storage.Backend),
	)
}

// applyAuthorizerIdentity replaces any client supplied identity headers with
// the subject the API Gateway authorizer verified
func applyAuthorizerIdentity(req *events.APIGatewayV2HTTPRequest) bool {
	for name := range req.Headers {
		if strings.EqualFold(name, middleware.UserIDHeader) || strings.EqualFold(name, middleware.UserEmailHeader) {
			delete(req.Headers, name)
		}
	}
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}

	authz := req.RequestContext.Authorizer
	if authz == nil {
		return false
	}

	var userID, email string
	switch {
	case authz.JWT != nil:
		userID = authz.JWT.Claims["sub"]
		email = authz.JWT.Claims["email"]
	case authz.Lambda != nil:
		userID, _ = authz.Lambda["sub"].(string)
		email, _ = authz.Lambda["email"].(string)
	}
	if userID == "" {
		return false
	}

	req.Headers[middleware.UserIDHeader] = userID
	if email != "" {
		req.Headers[middleware.UserEmailHeader] = email
	}
	return true
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if !applyAuthorizerIdentity(&req) {
		container.Logger.Warn("No authorizer identity on request",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("request_id", req.RequestContext.RequestID),
		)
	}

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)
	if err != nil {
		container.Logger.Error("Failed to proxy request", zap.Error(err))
		return resp, err
	}

	if resp.Headers == nil {
		resp.Headers = make(map[string]string)
	}
	if coldStart {
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	}
	if req.RequestContext.RequestID != "" {
		resp.Headers["X-Lambda-Request-ID"] = req.RequestContext.RequestID
	}

	return resp, nil
}

func main() {
	setup()
	lambda.Start(Handler)
}
