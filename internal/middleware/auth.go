package middleware

import (
	"errors"
	"fmt"
	"ptero-billing/internal/apperr"
	"ptero-billing/internal/config"
	"ptero-billing/internal/model"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const actorKey = "actor"

// Claims carries the caller identity: the user id in sub and the role in role.
type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Auth requires a valid HS256 bearer token and stores the caller as the request's actor.
func Auth(cfg config.Auth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return apperr.UnauthorizedErr("missing bearer token")
			}

			actor, err := ParseToken(cfg, strings.TrimSpace(raw))
			if err != nil {
				c.Logger().Debugf("reject token: %v", err)
				return apperr.UnauthorizedErr("invalid token")
			}

			c.Set(actorKey, actor)
			return next(c)
		}
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := ActorFrom(c)
			if actor.UserID == "" {
				return apperr.UnauthorizedErr("authentication required")
			}
			if !actor.IsAdmin() {
				return apperr.ForbiddenErr("administrator role required")
			}
			return next(c)
		}
	}
}

func ActorFrom(c echo.Context) model.Actor {
	actor, _ := c.Get(actorKey).(model.Actor)
	return actor
}

func ParseToken(cfg config.Auth, raw string) (model.Actor, error) {
	if cfg.JWTSecret == "" {
		return model.Actor{}, errors.New("jwt secret not configured")
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return model.Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.Subject == "" {
		return model.Actor{}, errors.New("token without subject")
	}

	role := model.RoleUser
	if claims.Role == model.RoleAdmin {
		role = model.RoleAdmin
	}
	return model.Actor{UserID: claims.Subject, Role: role}, nil
}

// IssueToken signs a token for userID. Used by the operator CLI and tests.
func IssueToken(cfg config.Auth, userID string, role model.Role, ttl time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
}
