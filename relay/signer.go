package relay

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureHeader carries the per-request payload signature.
const SignatureHeader = "X-Flashbots-Signature"

// Signer signs relay payloads on behalf of an address.
type Signer interface {
	Address() common.Address
	Sign(payload []byte) ([]byte, error)
}

// KeySigner signs with a local ECDSA key. The signature covers the EIP-191
// text hash of the hex encoded keccak256 digest of the payload.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// NewKeySignerFromHex parses a hex private key, with or without 0x prefix.
func NewKeySignerFromHex(hexKey string) (*KeySigner, error) {
	if hexKey == "" {
		return nil, errors.New("empty private key")
	}
	key, err := crypto.HexToECDSA(trim0x(hexKey))
	if err != nil {
		return nil, err
	}
	return NewKeySigner(key), nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) Sign(payload []byte) ([]byte, error) {
	return crypto.Sign(PayloadHash(payload), s.key)
}

// PayloadHash is the digest a Signer signs for a request body.
func PayloadHash(payload []byte) []byte {
	hashedBody := crypto.Keccak256Hash(payload).Hex()
	return accounts.TextHash([]byte(hashedBody))
}

// signatureHeaderValue formats "<address>:<0x signature>".
func signatureHeaderValue(signer Signer, payload []byte) (string, error) {
	sig, err := signer.Sign(payload)
	if err != nil {
		return "", err
	}
	return signer.Address().Hex() + ":" + hexutil.Encode(sig), nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
