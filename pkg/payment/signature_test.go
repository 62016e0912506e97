package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"event":"payment.captured"}`)
	sig := SignPayload(secret, payload)

	assert.True(t, VerifySignature(secret, payload, sig))
}

func TestVerifySignatureRejectsCorruption(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"event":"payment.captured"}`)
	sig := SignPayload(secret, payload)

	// One flipped bit anywhere in the body invalidates the signature.
	corrupted := make([]byte, len(payload))
	copy(corrupted, payload)
	corrupted[0] ^= 0x01
	assert.False(t, VerifySignature(secret, corrupted, sig))

	// Same for the signature itself.
	badSig := []byte(sig)
	badSig[0] ^= 0x01
	assert.False(t, VerifySignature(secret, payload, string(badSig)))

	assert.False(t, VerifySignature("other-secret", payload, sig))
}

func TestVerifySignatureEmptyInputs(t *testing.T) {
	payload := []byte("body")
	assert.False(t, VerifySignature("", payload, SignPayload("", payload)))
	assert.False(t, VerifySignature("secret", payload, ""))
}

func TestMockGatewayVerify(t *testing.T) {
	g := NewMockGateway("whsec_test")
	payload := []byte(`{"event":"x"}`)
	sig := SignPayload("whsec_test", payload)

	require.True(t, g.VerifyWebhook(payload, sig))
	assert.False(t, g.VerifyWebhook(payload, "wrong"))
}
