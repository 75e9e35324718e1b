package crypto

import (
	"os"
	"path/filepath"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEVMKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testSolanaKey(t *testing.T) string {
	t.Helper()
	return solanago.NewWallet().PrivateKey.String()
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	for name, key := range map[string]string{
		"evm hex":       testEVMKey,
		"solana base58": testSolanaKey(t),
	} {
		t.Run(name, func(t *testing.T) {
			blob, err := EncryptKey(key, "hunter2")
			require.NoError(t, err)

			got, err := DecryptKey(blob, "hunter2")
			require.NoError(t, err)
			assert.Equal(t, key, got)
		})
	}
}

func TestDecryptKey_WrongPassword(t *testing.T) {
	blob, err := EncryptKey(testEVMKey, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
}

func TestEncryptKey_EmptyInputs(t *testing.T) {
	_, err := EncryptKey(testEVMKey, "")
	require.Error(t, err)

	_, err = EncryptKey("", "hunter2")
	require.Error(t, err)
}

func TestEncryptKey_UniqueSaltAndNonce(t *testing.T) {
	a, err := EncryptKey(testEVMKey, "hunter2")
	require.NoError(t, err)
	b, err := EncryptKey(testEVMKey, "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(b))
}

func TestLoadKey_Raw(t *testing.T) {
	key, err := LoadKey(KeyConfig{RawKey: "0x" + testEVMKey, Kind: KindEVM})
	require.NoError(t, err)
	assert.Equal(t, "0x"+testEVMKey, key)

	solKey := testSolanaKey(t)
	key, err = LoadKey(KeyConfig{RawKey: solKey, Kind: KindSolana})
	require.NoError(t, err)
	assert.Equal(t, solKey, key)
}

func TestLoadKey_RawInvalid(t *testing.T) {
	_, err := LoadKey(KeyConfig{RawKey: "zzzz", Kind: KindEVM})
	require.Error(t, err)

	_, err = LoadKey(KeyConfig{RawKey: "abcd", Kind: KindEVM}) // hex but not 32 bytes
	require.Error(t, err)

	_, err = LoadKey(KeyConfig{RawKey: "0Ol!", Kind: KindSolana})
	require.Error(t, err)

	// Hex keys contain characters outside the base58 alphabet.
	_, err = LoadKey(KeyConfig{RawKey: testEVMKey, Kind: KindSolana})
	require.Error(t, err)

	_, err = LoadKey(KeyConfig{RawKey: testEVMKey, Kind: KeyKind("other")})
	require.Error(t, err)
}

func TestLoadKey_EncryptedFile(t *testing.T) {
	solKey := testSolanaKey(t)
	blob, err := EncryptKey(solKey, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sol.key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	key, err := LoadKey(KeyConfig{EncryptedKeyPath: path, Password: "hunter2", Kind: KindSolana})
	require.NoError(t, err)
	assert.Equal(t, solKey, key)

	_, err = LoadKey(KeyConfig{EncryptedKeyPath: path, Password: "wrong", Kind: KindSolana})
	require.Error(t, err)
}

func TestLoadKey_MissingFile(t *testing.T) {
	_, err := LoadKey(KeyConfig{EncryptedKeyPath: "/nonexistent/key.json", Password: "x", Kind: KindEVM})
	require.Error(t, err)
}

func TestLoadKey_NoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{Kind: KindEVM})
	require.Error(t, err)
}
