package services

import (
	"bytes"
	"testing"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec(t *testing.T) *MessageCodec {
	t.Helper()
	codec, err := NewMessageCodec(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return codec
}

func TestNewMessageCodecRejectsShortKey(t *testing.T) {
	_, err := NewMessageCodec([]byte("too short"))
	assert.Error(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := testCodec(t)

	env, err := codec.Encrypt("meet me at the north gate", 3, 9)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeAlgorithm, env.Algorithm)
	assert.NotEmpty(t, env.Ciphertext)
	assert.NotEmpty(t, env.IV)
	assert.NotEmpty(t, env.AuthTag)
	assert.NotEmpty(t, env.MAC)
	assert.NotContains(t, env.Ciphertext, "north gate")

	plain, err := codec.Decrypt(env, 3, 9)
	require.NoError(t, err)
	assert.Equal(t, "meet me at the north gate", plain)
}

func TestEncryptProducesFreshIVs(t *testing.T) {
	codec := testCodec(t)

	a, err := codec.Encrypt("same words", 3, 9)
	require.NoError(t, err)
	b, err := codec.Encrypt("same words", 3, 9)
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptBindsDirection(t *testing.T) {
	codec := testCodec(t)

	env, err := codec.Encrypt("meet me at the north gate", 3, 9)
	require.NoError(t, err)

	// same pair, reversed roles: the direction AAD must reject it
	_, err = codec.Decrypt(env, 9, 3)
	require.Error(t, err)
	var appErr *utils.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeDecryption, appErr.Code)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	codec := testCodec(t)

	env, err := codec.Encrypt("meet me at the north gate", 3, 9)
	require.NoError(t, err)

	tampered := env
	raw := []byte(tampered.Ciphertext)
	if raw[0] == 'a' {
		raw[0] = 'b'
	} else {
		raw[0] = 'a'
	}
	tampered.Ciphertext = string(raw)

	_, err = codec.Decrypt(tampered, 3, 9)
	assert.Error(t, err)
}

func TestDecryptRejectsWrongAlgorithmTag(t *testing.T) {
	codec := testCodec(t)

	env, err := codec.Encrypt("meet me at the north gate", 3, 9)
	require.NoError(t, err)

	env.Algorithm = "aes-128-cbc"
	_, err = codec.Decrypt(env, 3, 9)
	assert.Error(t, err)
}

func TestDecryptRejectsForgedMAC(t *testing.T) {
	codec := testCodec(t)

	env, err := codec.Encrypt("meet me at the north gate", 3, 9)
	require.NoError(t, err)

	other, err := codec.Encrypt("different message", 3, 9)
	require.NoError(t, err)

	env.MAC = other.MAC
	_, err = codec.Decrypt(env, 3, 9)
	assert.Error(t, err)
}

func TestPairOrderIsCanonical(t *testing.T) {
	lo, hi := pairOrder(9, 3)
	assert.Equal(t, uint(3), lo)
	assert.Equal(t, uint(9), hi)

	lo, hi = pairOrder(3, 9)
	assert.Equal(t, uint(3), lo)
	assert.Equal(t, uint(9), hi)
}
