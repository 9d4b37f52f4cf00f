package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLen is the shortest session secret accepted, in bytes.
const MinSecretLen = 32

// CookieKeys are the securecookie hash and block keys for the visitor cookie.
type CookieKeys struct {
	Hash  []byte
	Block []byte
}

// DeriveCookieKeys expands secret into a 64-byte HMAC key and a 32-byte
// AES key using HKDF-SHA256 with distinct info strings.
func DeriveCookieKeys(secret []byte) (CookieKeys, error) {
	hash, err := derive(secret, "bloodscan-cookie-hash", 64)
	if err != nil {
		return CookieKeys{}, err
	}
	block, err := derive(secret, "bloodscan-cookie-block", 32)
	if err != nil {
		return CookieKeys{}, err
	}
	return CookieKeys{Hash: hash, Block: block}, nil
}

func derive(secret []byte, info string, n int) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, errors.Wrap(err, "hkdf")
	}
	return out, nil
}

// MustRandom returns n random bytes or panics.
func MustRandom(n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic(err)
	}
	return b
}

// ReadSecret returns the session secret from the hex string value if set,
// else from the hex encoded file at path.
func ReadSecret(value, path string) ([]byte, error) {
	src := strings.TrimSpace(value)
	if src == "" {
		if path == "" {
			return nil, errors.New("no session secret configured")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read secret file %s", path)
		}
		src = strings.TrimSpace(string(data))
	}
	secret, err := hex.DecodeString(src)
	if err != nil {
		return nil, errors.Wrap(err, "session secret is not hex")
	}
	if len(secret) < MinSecretLen {
		return nil, errors.Errorf("session secret must be at least %d bytes, got %d", MinSecretLen, len(secret))
	}
	return secret, nil
}

// WriteSecret writes a fresh hex encoded secret to path, refusing to
// overwrite an existing file.
func WriteSecret(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("%s already exists, refusing to overwrite", path)
	}
	hexKey := hex.EncodeToString(MustRandom(MinSecretLen))
	if err := os.WriteFile(path, []byte(hexKey+"\n"), 0600); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
