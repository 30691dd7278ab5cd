package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/registry"
)

// IssuerKey is the registry entry holding the token issuer.
var IssuerKey = registry.NewKey[*Issuer]("issuer")

const (
	DefaultTokenTTL = 24 * time.Hour
	issuerName      = "moneykeeper"

	PurposeAccess = "access"
	// PurposeState marks short-lived tokens carried through OAuth redirects.
	PurposeState = "state"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the JWT claims of every token the service signs.
type Claims struct {
	jwt.RegisteredClaims
	Role    string `json:"role"`
	Purpose string `json:"purpose"`
}

// Issuer signs and verifies HS256 tokens with the service secret key.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secretKey string, ttl time.Duration) (*Issuer, error) {
	if secretKey == "" {
		return nil, apperrors.NewRequired("secret key")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(secretKey), ttl: ttl, now: time.Now}, nil
}

// Issue signs an access token for id.
func (i *Issuer) Issue(id Identity) (string, error) {
	return i.sign(id, PurposeAccess, i.ttl)
}

// IssueState signs a token binding an OAuth round trip to id.
func (i *Issuer) IssueState(id Identity, ttl time.Duration) (string, error) {
	return i.sign(id, PurposeState, ttl)
}

func (i *Issuer) sign(id Identity, purpose string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   strconv.FormatInt(id.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:    id.Role,
		Purpose: purpose,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", apperrors.NewInternal("failed to sign token").WithInnerError(err)
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose and returns the identity.
func (i *Issuer) Verify(tokenString, purpose string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuerName), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Purpose != purpose {
		return Identity{}, ErrInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, Role: claims.Role}, nil
}
