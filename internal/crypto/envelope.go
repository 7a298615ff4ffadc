package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"github.com/opentdf/ctivault/pkg/cti"
)

const (
	KeySize   = 32
	NonceSize = 16
	TagSize   = 16

	// EnvelopeOverhead is the framing added to every plaintext: nonce plus tag.
	EnvelopeOverhead = NonceSize + TagSize
)

// Envelope is the framed output of Seal: nonce || ciphertext || tag.
type Envelope struct {
	Nonce      []byte
	Ciphertext []byte
	Tag        []byte
}

// Bytes reassembles the wire framing.
func (e *Envelope) Bytes() []byte {
	out := make([]byte, 0, len(e.Nonce)+len(e.Ciphertext)+len(e.Tag))
	out = append(out, e.Nonce...)
	out = append(out, e.Ciphertext...)
	return append(out, e.Tag...)
}

// ParseEnvelope splits an envelope into its parts without decrypting it.
func ParseEnvelope(b []byte) (*Envelope, error) {
	if len(b) < EnvelopeOverhead {
		return nil, cti.Errorf(cti.KindMalformedEnvelope, "parse envelope", "envelope is %d bytes, need at least %d", len(b), EnvelopeOverhead)
	}
	s := kaitai.NewStream(bytes.NewReader(b))
	nonce, err := s.ReadBytes(NonceSize)
	if err != nil {
		return nil, cti.E(cti.KindMalformedEnvelope, "parse envelope", err)
	}
	ct, err := s.ReadBytes(len(b) - EnvelopeOverhead)
	if err != nil {
		return nil, cti.E(cti.KindMalformedEnvelope, "parse envelope", err)
	}
	tag, err := s.ReadBytes(TagSize)
	if err != nil {
		return nil, cti.E(cti.KindMalformedEnvelope, "parse envelope", err)
	}
	return &Envelope{Nonce: nonce, Ciphertext: ct, Tag: tag}, nil
}

func newEnvelopeAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, cti.Errorf(cti.KindInvalidKeySize, "envelope", "key is %d bytes, want %d", len(key), KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, cti.E(cti.KindInvalidKeySize, "envelope", err)
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

// Seal encrypts plaintext under a 32-byte key with AES-256-GCM using a fresh
// random 16-byte nonce, returning nonce || ciphertext || tag.
func Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newEnvelopeAEAD(key)
	if err != nil {
		return nil, err
	}
	nonce, err := GenerateNonce(NonceSize)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts an envelope produced by Seal. On any tag
// mismatch it returns AuthenticationFailure and no plaintext.
func Open(envelope, key []byte) ([]byte, error) {
	aead, err := newEnvelopeAEAD(key)
	if err != nil {
		return nil, err
	}
	env, err := ParseEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	pt, err := aead.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		return nil, cti.E(cti.KindAuthenticationFailure, "open envelope", err)
	}
	return pt, nil
}
