package websub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureRoundTrip(t *testing.T) {
	assert := assert.New(t)

	secret := []byte("super-secret")
	body := []byte(`{"event":"status.created"}`)

	for _, algo := range []Algorithm{AlgorithmSHA1, AlgorithmSHA256, AlgorithmSHA384, AlgorithmSHA512} {
		header := Sign(algo, secret, body)
		sig, err := ParseSignature(header)
		require.NoError(t, err)
		assert.Equal(algo, sig.Algorithm)
		assert.True(sig.Verify(secret, body))
	}
}

func TestSignatureRejectsMutation(t *testing.T) {
	assert := assert.New(t)

	secret := []byte("super-secret")
	body := []byte(`{"event":"status.created","object":{}}`)
	sig, err := ParseSignature(Sign(AlgorithmSHA256, secret, body))
	require.NoError(t, err)

	// flip a single bit in the body
	mutated := append([]byte{}, body...)
	mutated[3] ^= 0x01
	assert.False(sig.Verify(secret, mutated))

	// flip a single bit in the digest
	sig.Digest[0] ^= 0x01
	assert.False(sig.Verify(secret, body))

	// wrong secret
	sig, err = ParseSignature(Sign(AlgorithmSHA256, secret, body))
	require.NoError(t, err)
	assert.False(sig.Verify([]byte("other-secret"), body))

	// empty secret never validates
	assert.False(sig.Verify(nil, body))
}

func TestParseSignatureErrors(t *testing.T) {
	assert := assert.New(t)

	_, err := ParseSignature("sha256")
	assert.Error(err)

	_, err = ParseSignature("md5=abcd")
	assert.Error(err)

	_, err = ParseSignature("sha256=zzzz")
	assert.Error(err)

	// truncated digest
	_, err = ParseSignature("sha256=abcd")
	assert.Error(err)
}
