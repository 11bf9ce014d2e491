// FILE: internal/pkg/serverutils/jwt_middleware.go
package serverutils

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Identity is what a verified access token says about its bearer.
type Identity struct {
	UserID string
	Name   string
}

var (
	ErrMissingToken  = errors.New("missing token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("token missing user_id")
)

// ParseUserToken verifies an HMAC-signed token and extracts the user claims.
func ParseUserToken(tokenStr, secret string) (Identity, error) {
	if tokenStr == "" {
		return Identity{}, ErrMissingToken
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidClaims
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return Identity{}, ErrInvalidClaims
	}
	name, _ := claims["name"].(string)

	return Identity{UserID: userID, Name: name}, nil
}

// BearerToken reads the token from the Authorization header, falling back to
// the "token" query parameter browsers use for websocket upgrades.
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

func JwtMiddleware(ctx *fiber.Ctx) error {
	identity, err := ParseUserToken(BearerToken(ctx), os.Getenv("JWT_SECRET"))
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}

	ctx.Locals("user_id", identity.UserID)
	ctx.Locals("user_name", identity.Name)
	return ctx.Next()
}
