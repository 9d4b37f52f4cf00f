package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveCookieKeys(t *testing.T) {
	secret := MustRandom(MinSecretLen)

	a, err := DeriveCookieKeys(secret)
	require.NoError(t, err)
	b, err := DeriveCookieKeys(secret)
	require.NoError(t, err)

	assert.Len(t, a.Hash, 64)
	assert.Len(t, a.Block, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Hash[:32], a.Block)
}

func TestReadSecretValue(t *testing.T) {
	raw := MustRandom(MinSecretLen)
	got, err := ReadSecret(" "+hex.EncodeToString(raw)+"\n", "")
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestReadSecretTooShort(t *testing.T) {
	_, err := ReadSecret(hex.EncodeToString(MustRandom(8)), "")
	assert.Error(t, err)
}

func TestReadSecretNotHex(t *testing.T) {
	_, err := ReadSecret(strings.Repeat("zz", MinSecretLen), "")
	assert.Error(t, err)
}

func TestWriteThenReadSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.key")
	require.NoError(t, WriteSecret(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	secret, err := ReadSecret("", path)
	require.NoError(t, err)
	assert.Len(t, secret, MinSecretLen)

	assert.Error(t, WriteSecret(path), "second write must not overwrite")
}
