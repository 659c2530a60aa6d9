package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/krishanu7/battleship-engine/db"
	"github.com/krishanu7/battleship-engine/internal/game"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidAccount     = errors.New("invalid account")
)

// Accounts is the user storage the service needs.
type Accounts interface {
	CreateUser(ctx context.Context, u *db.User) error
	UserByName(ctx context.Context, username string) (*db.User, error)
}

type Service struct {
	accounts Accounts
	secret   []byte
	now      func() time.Time
}

func NewService(accounts Accounts, jwtSecret string) *Service {
	return &Service{
		accounts: accounts,
		secret:   []byte(jwtSecret),
		now:      time.Now,
	}
}

// Register creates an account. The email is optional; without a password
// the account can play but cannot log in.
func (s *Service) Register(ctx context.Context, username, email, password string) (db.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return db.User{}, fmt.Errorf("%w: username cannot be empty", ErrInvalidAccount)
	}
	user := db.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     strings.TrimSpace(email),
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return db.User{}, err
		}
		user.Password = string(hashed)
	}
	if err := s.accounts.CreateUser(ctx, &user); err != nil {
		return db.User{}, err
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.accounts.UserByName(ctx, username)
	if err != nil {
		if errors.Is(err, game.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if user.Password == "" {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.Username,
		ID:        user.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	})
	return token.SignedString(s.secret)
}

// ParseToken validates a token and returns the player name it was issued to.
func (s *Service) ParseToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("invalid token: missing subject")
	}
	return claims.Subject, nil
}

// PlayerByName resolves a player for the game engine.
func (s *Service) PlayerByName(ctx context.Context, name string) (game.Player, error) {
	user, err := s.accounts.UserByName(ctx, name)
	if err != nil {
		return game.Player{}, err
	}
	return game.Player{ID: user.ID, Name: user.Username, Email: user.Email}, nil
}

// Authorizer checks the bearer token, if any, against the acting player.
// With require set, requests without a token are rejected.
func (s *Service) Authorizer(require bool) game.Authorizer {
	return func(r *http.Request, player string) error {
		token := tokenFromRequest(r)
		if token == "" {
			if require {
				return game.ErrUnauthorized
			}
			return nil
		}
		subject, err := s.ParseToken(token)
		if err != nil {
			return fmt.Errorf("%w: %v", game.ErrUnauthorized, err)
		}
		if subject != player {
			return fmt.Errorf("%w: token belongs to %s", game.ErrForbidden, subject)
		}
		return nil
	}
}

// tokenFromRequest reads the Authorization header, falling back to the
// token query parameter that websocket clients send.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return header
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}
