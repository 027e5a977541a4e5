package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/Yulian302/lfusys-services-handshake/apperror"
	"github.com/Yulian302/lfusys-services-handshake/auth"
	"github.com/Yulian302/lfusys-services-handshake/auth/oauth"
	"github.com/Yulian302/lfusys-services-handshake/auth/state"
	"github.com/Yulian302/lfusys-services-handshake/auth/types"
	"github.com/Yulian302/lfusys-services-handshake/config"
	"github.com/Yulian302/lfusys-services-handshake/logging"
	"github.com/Yulian302/lfusys-services-handshake/services/caching"
	"github.com/Yulian302/lfusys-services-handshake/store"
)

const userCacheTTL = 5 * time.Minute

type LoginResponse struct {
	AccessToken  string
	RefreshToken string
	User         *types.User
}

// AuthRequest is one issued authorization round trip. Nonce keys the
// channel its popup reports on.
type AuthRequest struct {
	URL   string
	Nonce string
}

type AuthService interface {
	// AuthURL issues a fresh state for provider and returns where to send
	// the user.
	AuthURL(ctx context.Context, provider string, popup bool) (*AuthRequest, error)
	// VerifyState consumes the nonce carried by st.
	VerifyState(ctx context.Context, st state.State) error
	// ExchangeCode redeems an authorization code at most once and logs the
	// matching local user in.
	ExchangeCode(ctx context.Context, provider, code string) (*LoginResponse, error)

	GetCurrentUser(ctx context.Context, accessToken string) (*types.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (*types.TokenPair, error)
	ValidateToken(tokenString string) (*types.JWTClaims, error)
}

type AuthServiceImpl struct {
	userStore  store.UserStore
	stateStore store.StateStore
	cache      caching.Cache
	providers  *oauth.Registry
	breakers   map[string]*gobreaker.CircuitBreaker[types.OAuthUser]

	JwtAccessSecret  string
	JwtRefreshSecret string
	accessTTL        time.Duration
	refreshTTL       time.Duration
}

func NewAuthServiceImpl(
	userStore store.UserStore,
	stateStore store.StateStore,
	cache caching.Cache,
	providers *oauth.Registry,
	jwtCfg config.JWTConfig,
) *AuthServiceImpl {
	s := &AuthServiceImpl{
		userStore:        userStore,
		stateStore:       stateStore,
		cache:            cache,
		providers:        providers,
		breakers:         make(map[string]*gobreaker.CircuitBreaker[types.OAuthUser]),
		JwtAccessSecret:  jwtCfg.SecretKey,
		JwtRefreshSecret: jwtCfg.RefreshSecretKey,
		accessTTL:        jwtCfg.AccessTTL,
		refreshTTL:       jwtCfg.RefreshTTL,
	}
	if s.accessTTL == 0 {
		s.accessTTL = types.AccessTokenDuration
	}
	if s.refreshTTL == 0 {
		s.refreshTTL = types.RefreshTokenDuration
	}
	for _, name := range providers.Names() {
		s.breakers[name] = newProviderBreaker(name)
	}
	return s
}

func newProviderBreaker(provider string) *gobreaker.CircuitBreaker[types.OAuthUser] {
	return gobreaker.NewCircuitBreaker[types.OAuthUser](gobreaker.Settings{
		Name: "oauth-provider:" + provider,

		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},

		// a user without a verified email says nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, apperror.ErrEmailUnverified)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}

func (s *AuthServiceImpl) AuthURL(ctx context.Context, provider string, popup bool) (*AuthRequest, error) {
	p, err := s.providers.Get(provider)
	if err != nil {
		return nil, err
	}

	st, err := state.New(provider, popup)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInternalServer, err)
	}
	if err := s.stateStore.SaveState(ctx, st.Nonce, provider); err != nil {
		return nil, fmt.Errorf("%w: save state: %w", apperror.ErrInternalServer, err)
	}

	encoded, err := st.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInternalServer, err)
	}
	return &AuthRequest{URL: p.AuthCodeURL(encoded), Nonce: st.Nonce}, nil
}

func (s *AuthServiceImpl) VerifyState(ctx context.Context, st state.State) error {
	provider, ok, err := s.stateStore.ConsumeState(ctx, st.Nonce)
	if err != nil {
		return fmt.Errorf("%w: consume state: %w", apperror.ErrInternalServer, err)
	}
	if !ok {
		return apperror.ErrInvalidState
	}
	if st.Provider != "" && provider != st.Provider {
		return fmt.Errorf("%w: issued for %s", apperror.ErrInvalidState, provider)
	}
	return nil
}

func (s *AuthServiceImpl) ExchangeCode(ctx context.Context, provider, code string) (*LoginResponse, error) {
	log := logging.FromContext(ctx).With(slog.String("provider", provider))

	p, err := s.providers.Get(provider)
	if err != nil {
		return nil, err
	}

	fresh, err := s.stateStore.MarkCodeUsed(ctx, provider, code)
	if err != nil {
		return nil, fmt.Errorf("%w: mark code: %w", apperror.ErrInternalServer, err)
	}
	if !fresh {
		log.Warn("authorization code replayed")
		return nil, apperror.ErrDuplicateCode
	}

	oauthUser, err := s.breakers[provider].Execute(func() (types.OAuthUser, error) {
		tok, err := p.ExchangeCode(ctx, code)
		if err != nil {
			return types.OAuthUser{}, err
		}
		return p.GetOAuthUser(ctx, tok)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", apperror.ErrProviderExchange, err)
		}
		return nil, err
	}

	user, err := s.findOrRegister(ctx, oauthUser)
	if err != nil {
		return nil, err
	}

	pair, err := s.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}

	log.Info("oauth login", slog.String("user_id", user.ID))
	return &LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user,
	}, nil
}

func (s *AuthServiceImpl) findOrRegister(ctx context.Context, ou types.OAuthUser) (*types.User, error) {
	user, err := s.userStore.GetByEmail(ctx, ou.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInternalServer, err)
	}

	created, err := s.RegisterOAuth(ctx, ou)
	if errors.Is(err, apperror.ErrUserAlreadyExists) {
		// lost a race with a concurrent first login
		return s.userStore.GetByEmail(ctx, ou.Email)
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *AuthServiceImpl) RegisterOAuth(ctx context.Context, ou types.OAuthUser) (*types.User, error) {
	user := types.User{
		ID:         uuid.NewString(),
		Email:      ou.Email,
		Name:       ou.Name,
		Username:   ou.Username,
		AvatarURL:  ou.AvatarURL,
		Provider:   ou.Provider,
		ProviderID: ou.ProviderID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperror.ErrInternalServer, err)
	}
	return &user, nil
}

func (s *AuthServiceImpl) signToken(subject, typ, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := types.JWTClaims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    types.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperror.ErrTokenSignature, err)
	}
	return signed, nil
}

func (s *AuthServiceImpl) GenerateTokenPair(user *types.User) (*types.TokenPair, error) {
	access, err := s.signToken(user.Email, types.AccessTokenType, s.JwtAccessSecret, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.signToken(user.Email, types.RefreshTokenType, s.JwtRefreshSecret, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &types.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *AuthServiceImpl) GetCurrentUser(ctx context.Context, accessToken string) (*types.User, error) {
	claims, err := s.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != types.AccessTokenType {
		return nil, apperror.ErrInvalidTokenType
	}

	cacheKey := "user:" + claims.Subject
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
		var user types.User
		if err := json.Unmarshal([]byte(cached), &user); err == nil {
			return &user, nil
		}
	}

	user, err := s.userStore.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrUserNotFound, err)
	}

	if data, err := json.Marshal(user); err == nil {
		if err := s.cache.Set(ctx, cacheKey, string(data), userCacheTTL); err != nil {
			logging.FromContext(ctx).Warn("could not cache user", slog.Any("err", err))
		}
	}
	return user, nil
}

func (s *AuthServiceImpl) ValidateToken(tokenString string) (*types.JWTClaims, error) {
	claims, err := auth.ParseToken(tokenString, s.JwtAccessSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *AuthServiceImpl) ValidateRefreshToken(tokenString string) (*types.JWTClaims, error) {
	claims, err := auth.ParseToken(tokenString, s.JwtRefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *AuthServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenPair, error) {
	claims, err := s.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	if claims.Type != types.RefreshTokenType {
		return nil, apperror.ErrInvalidTokenType
	}

	user, err := s.userStore.GetByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrUserNotFound, err)
	}

	return s.GenerateTokenPair(user)
}
