package importer

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/argon2"
)

// PasswordHasher hashes a clear-text password taken from an import file.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

const (
	saltLength  = 16
	memory      = 64 * 1024
	iterations  = 3
	parallelism = 2
	keyLength   = 32
)

type argonHasher struct{}

func (argonHasher) Hash(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s", memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt), base64.RawStdEncoding.EncodeToString(hash)), nil
}
