package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/utils"

	"golang.org/x/crypto/hkdf"
)

// EnvelopeAlgorithm tags envelopes produced by the current codec version.
const EnvelopeAlgorithm = "aes-256-gcm"

const (
	masterKeySize = 32
	gcmNonceSize  = 12
)

// Envelope is the storage form of encrypted message content. All fields are
// hex encoded.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Algorithm  string `json:"algorithm"`
	AuthTag    string `json:"authTag"`
	MAC        string `json:"mac"`
}

// MessageCodec encrypts and decrypts direct message content with a
// server-held master key. Per-conversation keys are derived with HKDF from
// the unordered user pair; the direction (sender -> receiver) is bound into
// the GCM associated data and the envelope MAC, so decrypting with a swapped
// pair fails the integrity check.
type MessageCodec struct {
	masterKey []byte
}

func NewMessageCodec(masterKey []byte) (*MessageCodec, error) {
	if len(masterKey) != masterKeySize {
		return nil, fmt.Errorf("message codec: master key must be %d bytes, got %d", masterKeySize, len(masterKey))
	}
	key := make([]byte, masterKeySize)
	copy(key, masterKey)
	return &MessageCodec{masterKey: key}, nil
}

// MessageCodecFromEnv builds a codec from the hex-encoded
// MESSAGE_ENCRYPTION_KEY environment variable.
func MessageCodecFromEnv() (*MessageCodec, error) {
	raw := os.Getenv("MESSAGE_ENCRYPTION_KEY")
	if raw == "" {
		return nil, errors.New("MESSAGE_ENCRYPTION_KEY environment variable is required")
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("MESSAGE_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	return NewMessageCodec(key)
}

// Codec is the process-wide codec instance, set by InitializeCodec.
var Codec *MessageCodec

func InitializeCodec() error {
	codec, err := MessageCodecFromEnv()
	if err != nil {
		return err
	}
	Codec = codec
	return nil
}

func pairOrder(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

func (c *MessageCodec) deriveKey(label string, a, b uint) ([]byte, error) {
	info := fmt.Sprintf("%s:%d:%d", label, a, b)
	r := hkdf.New(sha256.New, c.masterKey, nil, []byte(info))
	key := make([]byte, masterKeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (c *MessageCodec) pairCipher(senderID, receiverID uint) (cipher.AEAD, error) {
	lo, hi := pairOrder(senderID, receiverID)
	key, err := c.deriveKey("dm", lo, hi)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (c *MessageCodec) envelopeMAC(senderID, receiverID uint, iv, ciphertext, authTag []byte) ([]byte, error) {
	lo, hi := pairOrder(senderID, receiverID)
	key, err := c.deriveKey("mac", lo, hi)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(iv)
	mac.Write(ciphertext)
	mac.Write(authTag)
	mac.Write(directionAAD(senderID, receiverID))
	return mac.Sum(nil), nil
}

func directionAAD(senderID, receiverID uint) []byte {
	return []byte(fmt.Sprintf("from:%d:to:%d", senderID, receiverID))
}

// Encrypt seals plaintext into a storage envelope for the given direction.
func (c *MessageCodec) Encrypt(plaintext string, senderID, receiverID uint) (Envelope, error) {
	gcm, err := c.pairCipher(senderID, receiverID)
	if err != nil {
		return Envelope{}, err
	}

	iv := make([]byte, gcmNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return Envelope{}, err
	}

	sealed := gcm.Seal(nil, iv, []byte(plaintext), directionAAD(senderID, receiverID))
	ciphertext := sealed[:len(sealed)-gcm.Overhead()]
	authTag := sealed[len(sealed)-gcm.Overhead():]

	mac, err := c.envelopeMAC(senderID, receiverID, iv, ciphertext, authTag)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
		Algorithm:  EnvelopeAlgorithm,
		AuthTag:    hex.EncodeToString(authTag),
		MAC:        hex.EncodeToString(mac),
	}, nil
}

// Decrypt opens an envelope. The MAC is checked before the AEAD open; any
// mismatch, including a swapped sender/receiver pair, yields a typed
// decryption error.
func (c *MessageCodec) Decrypt(env Envelope, senderID, receiverID uint) (string, error) {
	if env.Algorithm != EnvelopeAlgorithm {
		return "", utils.Decryption("unsupported envelope algorithm "+env.Algorithm, nil)
	}

	iv, err := hex.DecodeString(env.IV)
	if err != nil {
		return "", utils.Decryption("malformed envelope iv", err)
	}
	ciphertext, err := hex.DecodeString(env.Ciphertext)
	if err != nil {
		return "", utils.Decryption("malformed envelope ciphertext", err)
	}
	authTag, err := hex.DecodeString(env.AuthTag)
	if err != nil {
		return "", utils.Decryption("malformed envelope auth tag", err)
	}
	wantMAC, err := hex.DecodeString(env.MAC)
	if err != nil {
		return "", utils.Decryption("malformed envelope mac", err)
	}

	mac, err := c.envelopeMAC(senderID, receiverID, iv, ciphertext, authTag)
	if err != nil {
		return "", err
	}
	if !hmac.Equal(mac, wantMAC) {
		return "", utils.Decryption("envelope failed integrity check", nil)
	}

	gcm, err := c.pairCipher(senderID, receiverID)
	if err != nil {
		return "", err
	}
	if len(iv) != gcm.NonceSize() {
		return "", utils.Decryption("malformed envelope iv", nil)
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, authTag...), directionAAD(senderID, receiverID))
	if err != nil {
		return "", utils.Decryption("envelope failed integrity check", err)
	}
	return string(plaintext), nil
}
