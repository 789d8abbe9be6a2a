// Package core provides the authentication and authorization building blocks:
// credential hashing, lockout tracking, the live session index, permission
// resolution and the security audit log.
package core

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"

	domainauth "github.com/target/mmk-auth/internal/domain/auth"
	apperrors "github.com/target/mmk-auth/internal/errors"
)

const (
	// DefaultIterations is the PBKDF2 work factor for new credentials.
	DefaultIterations = 100_000
	// MinIterations is the lowest work factor accepted by configuration.
	MinIterations = 100_000
	// DefaultSaltLength is the number of random salt bytes.
	DefaultSaltLength = 32
	// DigestLength is the PBKDF2 output size in bytes.
	DigestLength = sha256.Size
)

// HasherOptions configures a Hasher. Zero values fall back to defaults.
type HasherOptions struct {
	Iterations int
	SaltLength int
}

// Hasher derives and verifies salted PBKDF2-HMAC-SHA256 digests.
// It holds no mutable state and is safe for concurrent use.
type Hasher struct {
	iterations int
	saltLength int
}

// NewHasher constructs a Hasher.
func NewHasher(opts HasherOptions) *Hasher {
	h := &Hasher{iterations: opts.Iterations, saltLength: opts.SaltLength}
	if h.iterations <= 0 {
		h.iterations = DefaultIterations
	}
	if h.saltLength <= 0 {
		h.saltLength = DefaultSaltLength
	}
	return h
}

// Iterations returns the configured work factor.
func (h *Hasher) Iterations() int { return h.iterations }

// Hash derives a digest for secret. When salt is empty a fresh random salt
// is generated. The returned salt is the one actually used.
func (h *Hasher) Hash(secret string, salt []byte) (digest, usedSalt []byte, err error) {
	if secret == "" {
		return nil, nil, apperrors.ValidationField("secret", "secret is required")
	}
	if len(salt) == 0 {
		salt = make([]byte, h.saltLength)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "generate salt")
		}
	}
	return derive(secret, salt, h.iterations), salt, nil
}

// Verify recomputes the digest for secret and compares it in constant time.
func (h *Hasher) Verify(secret string, digest, salt []byte) bool {
	return verify(secret, digest, salt, h.iterations)
}

// NewCredential hashes secret with a fresh salt.
func (h *Hasher) NewCredential(secret string) (domainauth.Credential, error) {
	digest, salt, err := h.Hash(secret, nil)
	if err != nil {
		return domainauth.Credential{}, err
	}
	return domainauth.Credential{Salt: salt, Digest: digest, Iterations: h.iterations}, nil
}

// VerifyCredential checks secret against a stored credential using the
// credential's own work factor.
func (h *Hasher) VerifyCredential(secret string, cred domainauth.Credential) bool {
	if cred.IsZero() {
		return false
	}
	iterations := cred.Iterations
	if iterations <= 0 {
		iterations = h.iterations
	}
	return verify(secret, cred.Digest, cred.Salt, iterations)
}

// NeedsRehash reports whether cred was derived with a weaker work factor than configured.
func (h *Hasher) NeedsRehash(cred domainauth.Credential) bool {
	return cred.Iterations < h.iterations
}

// ValidateSecret enforces the minimum secret length counted in characters.
func ValidateSecret(secret string, minLen int) error {
	if secret == "" {
		return apperrors.ValidationField("secret", "secret is required")
	}
	if n := utf8.RuneCountInString(secret); n < minLen {
		return apperrors.ValidationField("secret", fmt.Sprintf("secret must be at least %d characters", minLen))
	}
	return nil
}

func derive(secret string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(secret), salt, iterations, DigestLength, sha256.New)
}

func verify(secret string, digest, salt []byte, iterations int) bool {
	if secret == "" || len(digest) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(derive(secret, salt, iterations), digest) == 1
}
