package cryptox

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveMasterKey(password, salt)
	key2 := DeriveMasterKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}

	expectedHex := "34f7a1c64df63ab1ad5b5ee06e64db5713b35f81839823304db63e8e5e6a6a39"
	if hex.EncodeToString(key1) != expectedHex {
		t.Errorf("expected %s, got %s", expectedHex, hex.EncodeToString(key1))
	}
}

func TestDeriveMasterKey_DifferentSalts(t *testing.T) {
	key1 := DeriveMasterKey([]byte("secret-password"), []byte("salt-1"))
	key2 := DeriveMasterKey([]byte("secret-password"), []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := DeriveMasterKey([]byte("device"), []byte("salt"))

	sealed, err := Seal([]byte("eyJhbGciOi.refresh"), key)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "refresh")

	plain, err := Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOi.refresh", string(plain))
}

func TestSeal_FreshNoncePerCall(t *testing.T) {
	key := DeriveMasterKey([]byte("device"), []byte("salt"))

	a, err := Seal([]byte("same"), key)
	require.NoError(t, err)
	b, err := Seal([]byte("same"), key)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Errors(t *testing.T) {
	key := DeriveMasterKey([]byte("device"), []byte("salt"))
	other := DeriveMasterKey([]byte("other"), []byte("salt"))

	sealed, err := Seal([]byte("token"), key)
	require.NoError(t, err)

	_, err = Open(sealed, other)
	assert.Error(t, err, "wrong key must fail authentication")

	_, err = Open([]byte{1, 2, 3}, key)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	_, err = Seal([]byte("x"), []byte("short"))
	assert.Error(t, err, "invalid AES key size")
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.key")

	k1, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Len(t, k1, 32)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	k2, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "same file must yield the same key")
}

func TestLoadOrCreateKey_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.key")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

	_, err := LoadOrCreateKey(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected size")
}
