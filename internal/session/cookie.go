package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const CookieName = "gradebook_session"

// CookieCodec binds a browser to its session id with an HS256-signed
// cookie. The signature stops a client from minting arbitrary session
// ids; the session content itself never leaves the server.
type CookieCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewCookieCodec(secret []byte, ttl time.Duration) *CookieCodec {
	return &CookieCodec{
		secret: secret,
		ttl:    ttl,
	}
}

func (c *CookieCodec) Issue(id string) (*http.Cookie, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("unable to sign session cookie (%w)", err)
	}

	return &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}

// Decode returns the session id from the request's session cookie, or
// false if the cookie is absent, expired or tampered with.
func (c *CookieCodec) Decode(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}

	claims := jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		return c.secret, nil
	})

	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}

	return claims.Subject, true
}
