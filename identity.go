package msgchain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// IdentitySize is the size in bytes of an identity (x-only public key).
const IdentitySize = 32

// PrivateKeySize is the size in bytes of a serialized private key.
const PrivateKeySize = 32

// Keypair holds a secp256k1 signing key. Signatures are BIP-340
// Schnorr over 32-byte message digests; the matching identity is the
// 32-byte x-only public key.
type Keypair struct {
	priv *btcec.PrivateKey
}

// GenerateKeypair creates a fresh random keypair.
func GenerateKeypair() (*Keypair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// KeypairFromBytes restores a keypair from its 32-byte private scalar.
func KeypairFromBytes(b []byte) (*Keypair, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("invalid private key size: expected %d, got %d", PrivateKeySize, len(b))
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return &Keypair{priv: priv}, nil
}

// Identity returns the public verification key identifying this signer.
func (k *Keypair) Identity() []byte {
	return schnorr.SerializePubKey(k.priv.PubKey())
}

// Bytes returns the private scalar. Treat it as a secret.
func (k *Keypair) Bytes() []byte {
	return k.priv.Serialize()
}

// Sign produces a signature over a message digest.
func (k *Keypair) Sign(digest [DigestSize]byte) ([]byte, error) {
	sig, err := schnorr.Sign(k.priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// Verify reports whether sig is a valid signature by identity over
// digest. Malformed identities and signatures verify as false rather
// than erroring: to a validator they are indistinguishable from forgeries.
func Verify(identity []byte, digest [DigestSize]byte, sig []byte) bool {
	pub, err := schnorr.ParsePubKey(identity)
	if err != nil {
		return false
	}
	s, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return s.Verify(digest[:], pub)
}
