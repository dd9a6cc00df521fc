package service

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier valida los JWT de sesión emitidos por la aplicación web.
// Este backend no emite tokens, sólo los verifica.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// Claims son los datos de sesión. El token sólo trae userId y exp;
// Email y Role se completan desde la base al autenticar.
type Claims struct {
	UserID    string `json:"userId"`
	TokenType string `json:"typ,omitempty"`
	Email     string `json:"-"`
	Role      string `json:"-"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

const accessTokenType = "access"

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
	}
}

// ParseAccessToken valida firma y expiración. typ, sub e iss son opcionales,
// pero si vienen tienen que ser coherentes.
func (v *TokenVerifier) ParseAccessToken(accessToken string) (Claims, error) {
	if len(v.secret) == 0 {
		return Claims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(accessToken) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := v.parseToken(accessToken)
	if err != nil {
		return Claims{}, err
	}
	if !v.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (v *TokenVerifier) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (v *TokenVerifier) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" {
		return false
	}
	if claims.TokenType != "" && claims.TokenType != accessTokenType {
		return false
	}
	if claims.Subject != "" && claims.Subject != claims.UserID {
		return false
	}
	if v.issuer == "" || claims.Issuer == "" {
		return true
	}
	return claims.Issuer == v.issuer
}
