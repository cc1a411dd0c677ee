package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

var (
	ErrInvalidPrivateKey = errors.New("invalid private key format")
	ErrInvalidPublicKey  = errors.New("invalid public key format")
	ErrInvalidSignature  = errors.New("invalid signature format")
)

// KeyPair is a secp256k1 signing key and the identity it controls.
type KeyPair struct {
	private *btcec.PrivateKey
}

// GenerateKeyPair creates a new random key pair
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &KeyPair{private: priv}, nil
}

// KeyPairFromHex restores a key pair from its 32-byte hex private key
func KeyPairFromHex(privateKeyHex string) (*KeyPair, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(privateKeyHex))
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidPrivateKey
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return &KeyPair{private: priv}, nil
}

// PrivateKeyHex returns the hex encoded private key
func (k *KeyPair) PrivateKeyHex() string {
	return hex.EncodeToString(k.private.Serialize())
}

// PublicKey returns the 33-byte compressed public key
func (k *KeyPair) PublicKey() []byte {
	return k.private.PubKey().SerializeCompressed()
}

// PublicKeyHex returns the hex encoded compressed public key
func (k *KeyPair) PublicKeyHex() string {
	return strings.ToUpper(hex.EncodeToString(k.PublicKey()))
}

// ID returns the identity controlled by this key pair
func (k *KeyPair) ID() ID {
	return FromPublicKey(k.PublicKey())
}

// Sign signs SHA256(message) and returns the DER signature
func (k *KeyPair) Sign(message []byte) []byte {
	digest := sha256.Sum256(message)
	return ecdsa.Sign(k.private, digest[:]).Serialize()
}

// SignHex signs message and returns the hex encoded DER signature
func (k *KeyPair) SignHex(message []byte) string {
	return strings.ToUpper(hex.EncodeToString(k.Sign(message)))
}

// Verify checks a hex DER signature over SHA256(message) against a hex
// compressed public key and returns the identity of the signer.
func Verify(message []byte, publicKeyHex, signatureHex string) (ID, error) {
	pubBytes, err := hex.DecodeString(strings.TrimSpace(publicKeyHex))
	if err != nil {
		return Null, ErrInvalidPublicKey
	}
	pub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return Null, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	sigBytes, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil {
		return Null, ErrInvalidSignature
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return Null, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	digest := sha256.Sum256(message)
	if !sig.Verify(digest[:], pub) {
		return Null, ErrInvalidSignature
	}
	return FromPublicKey(pub.SerializeCompressed()), nil
}
