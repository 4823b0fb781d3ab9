package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StateCodec packs a bot token into the OAuth "state" parameter and back.
// Without a secret the raw token travels as state; with one it is a signed,
// short-lived HS256 token so a forged redirect cannot target another bot.
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewStateCodec(secret string, ttl time.Duration) *StateCodec {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &StateCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type stateClaims struct {
	jwt.RegisteredClaims
}

func (c *StateCodec) Encode(botToken string) (string, error) {
	if len(c.secret) == 0 {
		return botToken, nil
	}
	now := c.now()
	claims := stateClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   botToken,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign oauth state: %w", err)
	}
	return signed, nil
}

func (c *StateCodec) Decode(state string) (string, error) {
	if len(c.secret) == 0 {
		if state == "" {
			return "", errors.New("empty oauth state")
		}
		return state, nil
	}
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", fmt.Errorf("verify oauth state: %w", err)
	}
	if claims.Subject == "" {
		return "", errors.New("oauth state without subject")
	}
	return claims.Subject, nil
}
