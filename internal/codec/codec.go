// Package codec serializes run output to bytes and back.
//
// The pipeline is JSON, then optionally zstd compression, then optionally
// passphrase encryption. Decode detects each layer from the data itself, so
// any file written by Encode can be read back without knowing the options
// it was written with (except the passphrase).
package codec

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/koustreak/dbmeta/internal/errs"
)

const (
	extJSON = ".json"
	extZstd = ".zst"
	extEnc  = ".enc"
)

var (
	encMagic  = []byte("DBM1")
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// argon2id parameters. Changing them breaks existing encrypted files.
const (
	saltSize     = 16
	kdfTime      = 1
	kdfMemoryKiB = 64 * 1024
	kdfThreads   = 4
)

// Options selects the optional layers.
type Options struct {
	Compress   bool
	Passphrase []byte // encryption is enabled when non-empty
}

// Codec encodes and decodes values. It is safe for concurrent use.
type Codec struct {
	opts Options
}

func New(opts Options) *Codec {
	return &Codec{opts: opts}
}

// Extension is the file suffix for data written by Encode, e.g. ".json.zst".
func (c *Codec) Extension() string {
	ext := extJSON
	if c.opts.Compress {
		ext += extZstd
	}
	if len(c.opts.Passphrase) > 0 {
		ext += extEnc
	}
	return ext
}

// Extensions lists every suffix Encode can produce, plain first.
func Extensions() []string {
	return []string{extJSON, extJSON + extZstd, extJSON + extEnc, extJSON + extZstd + extEnc}
}

// ContentType is the MIME type for data written by Encode.
func (c *Codec) ContentType() string {
	switch {
	case len(c.opts.Passphrase) > 0:
		return "application/octet-stream"
	case c.opts.Compress:
		return "application/zstd"
	default:
		return "application/json"
	}
}

// Encode marshals v and applies the configured layers.
func (c *Codec) Encode(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "encoding json", err)
	}
	data = append(data, '\n')

	if c.opts.Compress {
		if data, err = compress(data); err != nil {
			return nil, err
		}
	}
	if len(c.opts.Passphrase) > 0 {
		if data, err = seal(c.opts.Passphrase, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// Decode strips whatever layers data carries and unmarshals into v.
func (c *Codec) Decode(data []byte, v any) error {
	var err error
	if bytes.HasPrefix(data, encMagic) {
		if len(c.opts.Passphrase) == 0 {
			return errs.New(errs.Permission, "data is encrypted and no passphrase is configured")
		}
		if data, err = open(c.opts.Passphrase, data); err != nil {
			return err
		}
	}
	if bytes.HasPrefix(data, zstdMagic) {
		if data, err = decompress(data); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errs.Wrap(errs.InvalidData, "decoding json", err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, errs.Wrap(errs.Other, "creating zstd encoder", err)
	}
	out := enc.EncodeAll(data, make([]byte, 0, len(data)/4))
	if err := enc.Close(); err != nil {
		return nil, errs.Wrap(errs.Other, "closing zstd encoder", err)
	}
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, errs.Wrap(errs.Other, "creating zstd decoder", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "decompressing", err)
	}
	return out, nil
}

// seal lays out magic | salt | nonce | ciphertext. The header is
// authenticated as additional data.
func seal(passphrase, plaintext []byte) ([]byte, error) {
	header := make([]byte, len(encMagic)+saltSize+chacha20poly1305.NonceSizeX)
	copy(header, encMagic)
	if _, err := rand.Read(header[len(encMagic):]); err != nil {
		return nil, errs.Wrap(errs.Other, "reading random salt", err)
	}
	salt := header[len(encMagic) : len(encMagic)+saltSize]
	nonce := header[len(encMagic)+saltSize:]

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, errs.Wrap(errs.Other, "creating cipher", err)
	}
	out := make([]byte, len(header), len(header)+len(plaintext)+aead.Overhead())
	copy(out, header)
	return aead.Seal(out, nonce, plaintext, header), nil
}

func open(passphrase, data []byte) ([]byte, error) {
	headerLen := len(encMagic) + saltSize + chacha20poly1305.NonceSizeX
	if len(data) < headerLen+chacha20poly1305.Overhead {
		return nil, errs.New(errs.InvalidData, fmt.Sprintf("encrypted data truncated (%d bytes)", len(data)))
	}
	header := data[:headerLen]
	salt := header[len(encMagic) : len(encMagic)+saltSize]
	nonce := header[len(encMagic)+saltSize:]

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, errs.Wrap(errs.Other, "creating cipher", err)
	}
	out, err := aead.Open(nil, nonce, data[headerLen:], header)
	if err != nil {
		return nil, errs.New(errs.Permission, "decryption failed: wrong passphrase or corrupted data")
	}
	return out, nil
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, kdfTime, kdfMemoryKiB, kdfThreads, chacha20poly1305.KeySize)
}
