package issuer

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "proofdeck/pkg/domain-errors"
)

// grantClaims is the JWS payload of a consent-grant signature. The grant's
// canonical hash is the only custom claim; everything else is standard JWT
// registered claims so off-the-shelf tooling can inspect tokens.
type grantClaims struct {
	GrantHash string `json:"grant_hash"`
	jwt.RegisteredClaims
}

// SignGrantHash wraps the canonical hash of a consent grant into a compact
// EdDSA JWS signed with the issuer key. The token restates audience and
// validity so the signature covers the binding context, not just the hash.
func (s *Service) SignGrantHash(hash, audience string, issuedAt, expiresAt time.Time) (string, error) {
	kp, err := s.keypair()
	if err != nil {
		return "", err
	}
	claims := grantClaims{
		GrantHash: hash,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    kp.IssuerID.String(),
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(kp.PrivateKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "grant signing failed")
	}
	return token, nil
}

// VerifyGrantHash parses and verifies a grant JWS and checks that it covers
// the expected hash and audience.
func (s *Service) VerifyGrantHash(token, wantHash, wantAudience string) error {
	kp, err := s.keypair()
	if err != nil {
		return err
	}
	parsed, err := jwt.ParseWithClaims(token, &grantClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return ed25519.PublicKey(kp.PublicKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithAudience(wantAudience),
		jwt.WithTimeFunc(func() time.Time { return s.clock.Now() }),
	)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeSignatureInvalid, "grant signature invalid")
	}
	claims, ok := parsed.Claims.(*grantClaims)
	if !ok || claims.GrantHash != wantHash {
		return dErrors.New(dErrors.CodeSignatureInvalid, "grant signature covers a different payload")
	}
	return nil
}
