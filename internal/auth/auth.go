package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/averhoeven/roster-management/internal"
)

// Claims carried by an actor token. The subject names the acting member;
// tokens are minted by the surrounding deployment and only verified here.
type Claims struct {
	jwt.RegisteredClaims
}

// MemberID parses the token subject into the acting member's id.
func (c *Claims) MemberID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, internal.ErrInvalidToken
	}
	return id, nil
}

// TokenVerifier checks actor tokens.
type TokenVerifier interface {
	VerifyActorToken(tokenString string) (*Claims, error)
}

var ErrTokenExpired = internal.NewUnauthorizedError("token expired", internal.ErrCodeInvalidToken)

// HMACVerifier validates HS256 actor tokens against a shared secret.
type HMACVerifier struct {
	secret []byte
	leeway time.Duration
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{
		secret: []byte(secret),
		leeway: 30 * time.Second,
	}
}

func (v *HMACVerifier) VerifyActorToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithLeeway(v.leeway))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, internal.ErrInvalidToken
	}
	return claims, nil
}
