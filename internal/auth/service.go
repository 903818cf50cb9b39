package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Evan-Ewald-Richardson/TREES/internal/db"
)

const (
	accessTokenTTL  = 12 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
	maxNameLen      = 40
)

var ErrNameRequired = errors.New("name required")

type Service struct {
	secret    []byte
	db        db.Querier
	superUser string
}

type Claims struct {
	Username string `json:"username"`
	Super    bool   `json:"super"`
	jwt.RegisteredClaims
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type LoginRequest struct {
	Name string `json:"name"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func NewService(secret string, db db.Querier, superUser string) *Service {
	return &Service{
		secret:    []byte(secret),
		db:        db,
		superUser: superUser,
	}
}

// Login finds the rider by name, creating them on first sight. There are no
// passwords: a name claims an identity, and deletions are gated on owning
// the name (or being the configured super user).
func (s *Service) Login(ctx context.Context, req LoginRequest) (User, TokenResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return User{}, TokenResponse{}, ErrNameRequired
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	var user User
	err := s.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM users WHERE name=$1`, name,
	).Scan(&user.ID, &user.Name, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		user = User{ID: uuid.NewString(), Name: name}
		row := s.db.QueryRow(ctx, `
			INSERT INTO users (id, name)
			VALUES ($1,$2)
			RETURNING created_at
		`, user.ID, user.Name)
		if err := row.Scan(&user.CreatedAt); err != nil {
			return User{}, TokenResponse{}, err
		}
	} else if err != nil {
		return User{}, TokenResponse{}, err
	}

	tokens, err := s.GenerateTokens(ctx, user.Name)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

// IsSuper reports whether name is the configured super user.
func (s *Service) IsSuper(name string) bool {
	return s.superUser != "" && name == s.superUser
}

func (s *Service) GenerateTokens(ctx context.Context, username string) (TokenResponse, error) {
	access, err := s.signToken(username, accessTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, err := s.signToken(username, refreshTokenTTL)
	if err != nil {
		return TokenResponse{}, err
	}

	if err := s.saveRefreshToken(ctx, refresh, username, refreshTokenTTL); err != nil {
		return TokenResponse{}, err
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return "", err
	}

	username, expiresAt, err := s.lookupRefreshToken(ctx, token)
	if err != nil || username != claims.Username || time.Now().After(expiresAt) {
		return "", errors.New("refresh token invalid")
	}
	return claims.Username, nil
}

func (s *Service) ValidateAccessToken(token string) (*Claims, error) {
	return s.parseToken(token)
}

func (s *Service) signToken(username string, ttl time.Duration) (string, error) {
	claims := Claims{
		Username: username,
		Super:    s.IsSuper(username),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) parseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (s *Service) saveRefreshToken(ctx context.Context, token, username string, ttl time.Duration) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO refresh_tokens (id, username, token, expires_at)
		VALUES ($1,$2,$3,$4)
	`, uuid.NewString(), username, token, time.Now().Add(ttl))
	return err
}

func (s *Service) lookupRefreshToken(ctx context.Context, token string) (string, time.Time, error) {
	row := s.db.QueryRow(ctx, `
		SELECT username, expires_at
		FROM refresh_tokens
		WHERE token = $1 AND revoked_at IS NULL
	`, token)
	var username string
	var expiresAt time.Time
	if err := row.Scan(&username, &expiresAt); err != nil {
		return "", time.Time{}, err
	}
	return username, expiresAt, nil
}
