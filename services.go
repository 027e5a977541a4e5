package main

import (
	"context"
	"log/slog"

	"github.com/Yulian302/lfusys-services-handshake/auth/oauth"
	"github.com/Yulian302/lfusys-services-handshake/handshake/channel"
	"github.com/Yulian302/lfusys-services-handshake/services"
	"github.com/Yulian302/lfusys-services-handshake/services/caching"
	"github.com/Yulian302/lfusys-services-handshake/store"
)

type Stores struct {
	users store.UserStore
	state *store.RedisStateStore
}

type Services struct {
	Auth     services.AuthService
	Registry *oauth.Registry
	Bus      channel.Bus

	Stores *Stores

	logger *slog.Logger
}

type Shutdowner interface {
	Shutdown(context.Context) error
}

func BuildServices(app *App) *Services {
	var usrStore store.UserStore
	if app.DynamoDB != nil {
		usrStore = store.NewUserStore(app.DynamoDB, app.Config.DynamoDBConfig.UsersTableName)
	} else {
		usrStore = store.NewMemoryUserStore()
	}
	stateStore := store.NewRedisStateStore(app.Redis, app.Config.OAuthConfig.StateTTL, app.Config.OAuthConfig.CodeTTL)

	registry := oauth.RegistryFromConfig(app.Config.OAuthConfig)
	if len(registry.Names()) == 0 {
		app.Logger.Warn("no oauth provider has client credentials")
	}

	cacheSvc := caching.NewRedisCachingService(app.Redis, "cache:")
	authSvc := services.NewAuthServiceImpl(usrStore, stateStore, cacheSvc, registry, app.Config.JWTConfig)

	return &Services{
		Auth:     authSvc,
		Registry: registry,
		Bus:      channel.NewRedisBus(app.Redis, app.Config.AppOrigin, app.Logger),

		Stores: &Stores{
			users: usrStore,
			state: stateStore,
		},

		logger: app.Logger,
	}
}

func (s *Services) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down services")

	if s.Stores != nil {
		if err := s.Stores.Shutdown(ctx, s.logger); err != nil {
			s.logger.Error("stores shutdown error", slog.Any("err", err))
		}
	}

	s.logger.Info("services shutdown complete")
	return nil
}

func (s *Stores) Shutdown(ctx context.Context, logger *slog.Logger) error {
	shutdownIfPossible := func(name string, v any) {
		if sh, ok := v.(Shutdowner); ok {
			if err := sh.Shutdown(ctx); err != nil {
				logger.Error("store shutdown error", slog.String("store", name), slog.Any("err", err))
			}
		}
	}

	shutdownIfPossible("users", s.users)
	shutdownIfPossible("state", s.state)
	return nil
}
