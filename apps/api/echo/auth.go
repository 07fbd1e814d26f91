package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/sundayschool/core"
)

const tokenContextKey = "staffToken"

// Claims represents the authorization claims transmitted via a JWT.
// Staff accounts live outside this app: tokens are minted by the admin CLI.
type Claims struct {
	jwt.StandardClaims
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

func jwtConfig(secretKey string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

func NewStaffClaims(staff core.Staff, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   staff.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username: staff.Username,
		Email:    staff.Email,
		IsAdmin:  staff.IsAdmin,
	}
}

// Staff returns the staff member the claims were issued to.
func (c Claims) Staff() core.Staff {
	return core.Staff{
		ID:       c.Subject,
		Username: c.Username,
		Email:    c.Email,
		IsAdmin:  c.IsAdmin,
	}
}

// GenerateToken generates a signed JWT token string representing the staff Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextStaff returns the authenticated staff member, or the zero Staff on public routes.
func contextStaff(ctx echo.Context) core.Staff {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Staff{}
	}
	return claims.Staff()
}
