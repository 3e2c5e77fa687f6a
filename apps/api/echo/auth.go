package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
)

const claimsContextKey = "userToken"

// Claims identifies the acting user. Accounts live outside this service:
// tokens are minted by the main platform (or `admin token` locally).
type Claims struct {
	jwt.StandardClaims
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	IsTeacher bool   `json:"is_teacher,omitempty"`
}

func jwtConfig(tokenLookup string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(core.Conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    claimsContextKey,
		Claims:        new(Claims),
		TokenLookup:   tokenLookup,
	}
}

// NewClaims returns claims for userID valid for the configured JWT lifetime.
func NewClaims(userID int, name, email string, isTeacher bool) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   strconv.Itoa(userID),
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:      name,
		Email:     email,
		IsTeacher: isTeacher,
	}
}

// UserID is the numeric subject of the claims.
func (c Claims) UserID() (int, error) {
	id, err := strconv.Atoi(c.Subject)
	if err != nil || id <= 0 {
		return 0, errUnauthorized
	}
	return id, nil
}

// GenerateToken signs claims with the app secret key.
func GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(core.Conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(claimsContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// actor returns the claims and user ID of the authenticated user.
func actor(ctx echo.Context) (Claims, int, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return Claims{}, 0, err
	}
	id, err := claims.UserID()
	return claims, id, err
}
