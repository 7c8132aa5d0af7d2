// Package orgkey decrypts the organization token held by the token store into the
// key sent on the organization-scoping header.
//
// Tokens use the OpenSSL/CryptoJS passphrase format: base64("Salted__" || salt || ciphertext),
// AES-256-CBC with PKCS#7 padding, key and IV derived with EVP_BytesToKey over MD5.
package orgkey

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5" //nolint:gosec // EVP_BytesToKey is defined over MD5
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	saltedPrefix = "Salted__"
	saltSize     = 8
	keySize      = 32
)

var (
	// ErrMalformedToken means the token is not base64 OpenSSL salted data
	ErrMalformedToken = errors.New("orgkey: malformed token")
	// ErrBadPadding usually means the secret does not match the one used for encryption
	ErrBadPadding = errors.New("orgkey: invalid padding")
	// ErrEmptyKey means decryption produced no usable text
	ErrEmptyKey = errors.New("orgkey: empty key")
)

// DecrypterFunc adapts a function to the decrypter contract used by the client
type DecrypterFunc func(ciphertext string) (string, error)

// Decrypt calls f(ciphertext)
func (f DecrypterFunc) Decrypt(ciphertext string) (string, error) { return f(ciphertext) }

// AES decrypts tokens sealed with a fixed shared passphrase
type AES struct {
	passphrase []byte
}

// NewAES returns a decrypter for the given shared secret
func NewAES(secret string) *AES {
	return &AES{passphrase: []byte(secret)}
}

// Decrypt opens a token produced by Encrypt or by CryptoJS.AES.encrypt(text, secret).
func (a *AES) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if len(raw) < len(saltedPrefix)+saltSize+aes.BlockSize || !bytes.HasPrefix(raw, []byte(saltedPrefix)) {
		return "", ErrMalformedToken
	}

	salt := raw[len(saltedPrefix) : len(saltedPrefix)+saltSize]
	body := raw[len(saltedPrefix)+saltSize:]
	if len(body)%aes.BlockSize != 0 {
		return "", ErrMalformedToken
	}

	key, iv := deriveKeyIV(a.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	plain, err = unpad(plain)
	if err != nil {
		return "", err
	}
	if len(plain) == 0 || !utf8.Valid(plain) {
		return "", ErrEmptyKey
	}
	return string(plain), nil
}

// Encrypt seals plaintext with a fresh random salt
func (a *AES) Encrypt(plaintext string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key, iv := deriveKeyIV(a.passphrase, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	sealed := make([]byte, 0, len(saltedPrefix)+saltSize+len(out))
	sealed = append(sealed, saltedPrefix...)
	sealed = append(sealed, salt...)
	sealed = append(sealed, out...)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// deriveKeyIV implements OpenSSL EVP_BytesToKey with MD5 and a single iteration
func deriveKeyIV(passphrase, salt []byte) (key, iv []byte) {
	var derived, prev []byte
	for len(derived) < keySize+aes.BlockSize {
		h := md5.New() //nolint:gosec // see import
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keySize], derived[keySize : keySize+aes.BlockSize]
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrBadPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrBadPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrBadPadding
		}
	}
	return b[:len(b)-n], nil
}
