package auth

import (
	"crypto/subtle"
	"errors"
)

var ErrWrongPassword = errors.New("wrong password")

// Provider issues and checks the bearer token of the admin panel.
type Provider interface {
	Login(password string) (string, error)
	Authorize(token string) bool
}

// SharedSecret is the simplest provider: the password is the token. It is not a session mechanism,
// tokens never expire and there is a single operator.
type SharedSecret struct {
	secret []byte
}

func NewSharedSecret(secret string) *SharedSecret {
	return &SharedSecret{secret: []byte(secret)}
}

func (s *SharedSecret) Login(password string) (string, error) {
	if !s.equal(password) {
		return "", ErrWrongPassword
	}
	return string(s.secret), nil
}

func (s *SharedSecret) Authorize(token string) bool {
	return s.equal(token)
}

func (s *SharedSecret) equal(candidate string) bool {
	if len(s.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), s.secret) == 1
}
