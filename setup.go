package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/Yulian302/lfusys-services-handshake/config"
	"github.com/Yulian302/lfusys-services-handshake/logging"
)

type App struct {
	// DynamoDB is nil when users are kept in memory.
	DynamoDB *dynamodb.Client
	Redis    *redis.Client
	Logger   *slog.Logger

	Config    config.Config
	AwsConfig aws.Config

	Services       *Services
	TracerProvider *trace.TracerProvider
}

func SetupApp() (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateAllSecrets(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.CreateLogger(cfg.Env, cfg.LogFile)
	slog.SetDefault(logger)

	app := &App{
		Redis:  initRedis(cfg.RedisConfig),
		Logger: logger,
		Config: cfg,
	}

	if cfg.DynamoDBConfig.UsersTableName != "" {
		awsCfg, err := initAWS(cfg.AWSConfig)
		if err != nil {
			return nil, err
		}
		app.AwsConfig = awsCfg
		app.DynamoDB = initDynamo(awsCfg)
	} else {
		logger.Warn("DYNAMODB_USERS_TABLE not set, users are kept in memory")
	}

	app.Services = BuildServices(app)

	return app, nil
}

func (a *App) Run(r *gin.Engine) error {
	a.Logger.Info("gateway listening",
		slog.String("addr", a.Config.GatewayAddr),
		slog.String("origin", a.Config.AppOrigin),
		slog.Any("providers", a.Services.Registry.Names()),
	)
	if err := r.Run(a.Config.GatewayAddr); err != nil {
		return err
	}
	return nil
}

func initAWS(cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(
		context.TODO(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func initDynamo(cfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg)
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.HOST,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func (a *App) Shutdown(ctx context.Context) {
	// the state store owns the redis client
	if a.Services != nil {
		_ = a.Services.Shutdown(ctx)
	}
	if a.TracerProvider != nil {
		_ = a.TracerProvider.Shutdown(ctx)
	}
}
