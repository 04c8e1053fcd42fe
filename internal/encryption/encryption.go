// Package encryption provides age-based encryption for dump files,
// including deterministic passphrase-derived recipients so the same
// passphrase always yields the same key pair.
package encryption

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/agessh"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/scrypt"

	"github.com/omvtools/mysqlkeeper/pkg/bech32"
)

const (
	passphraseRecipientSalt = "mysqlkeeper/age-passphrase/v1"
	passphraseScryptN       = 1 << 15
	passphraseScryptR       = 8
	passphraseScryptP       = 1

	// MinPassphraseLength is the minimum accepted passphrase length.
	MinPassphraseLength = 12
)

// ValidatePassphrase rejects passphrases too short to be worth deriving a
// key from.
func ValidatePassphrase(passphrase string) error {
	if len(passphrase) < MinPassphraseLength {
		return fmt.Errorf("passphrase must be at least %d characters", MinPassphraseLength)
	}
	return nil
}

// ParseRecipients parses recipient strings (age1... or ssh-...).
func ParseRecipients(values []string) ([]age.Recipient, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("no age recipients configured")
	}
	parsed := make([]age.Recipient, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}

		recipient, err := parseRecipientString(value)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, recipient)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("no age recipients configured")
	}
	return parsed, nil
}

func parseRecipientString(value string) (age.Recipient, error) {
	switch {
	case strings.HasPrefix(value, "age1"):
		return age.ParseX25519Recipient(value)
	case strings.HasPrefix(strings.ToLower(value), "ssh-"):
		return agessh.ParseRecipient(value)
	default:
		return nil, fmt.Errorf("unsupported age recipient format: %s", value)
	}
}

// ReadRecipientFile reads one recipient per line, skipping blanks and
// comments.
func ReadRecipientFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var recipients []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		recipients = append(recipients, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recipients, nil
}

// DeriveRecipientFromPassphrase deterministically derives an age recipient
// string from a passphrase.
func DeriveRecipientFromPassphrase(passphrase string) (string, error) {
	key, err := deriveCurve25519Scalar(passphrase)
	if err != nil {
		return "", err
	}
	public, err := curve25519.X25519(key, curve25519.Basepoint)
	if err != nil {
		return "", fmt.Errorf("derive X25519 public key: %w", err)
	}
	recipient, err := bech32.Encode("age", public)
	if err != nil {
		return "", fmt.Errorf("encode passphrase recipient: %w", err)
	}
	return recipient, nil
}

// DeriveIdentityFromPassphrase deterministically derives the matching age
// identity from a passphrase.
func DeriveIdentityFromPassphrase(passphrase string) (age.Identity, error) {
	key, err := deriveCurve25519Scalar(passphrase)
	if err != nil {
		return nil, err
	}
	secret, err := bech32.Encode("AGE-SECRET-KEY-", key)
	if err != nil {
		return nil, fmt.Errorf("encode secret key: %w", err)
	}
	return age.ParseX25519Identity(strings.ToUpper(secret))
}

func deriveCurve25519Scalar(passphrase string) ([]byte, error) {
	if err := ValidatePassphrase(passphrase); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), []byte(passphraseRecipientSalt),
		passphraseScryptN, passphraseScryptR, passphraseScryptP, curve25519.ScalarSize)
	if err != nil {
		return nil, fmt.Errorf("derive key from passphrase: %w", err)
	}
	clampCurve25519Scalar(key)
	return key, nil
}

func clampCurve25519Scalar(k []byte) {
	if len(k) != curve25519.ScalarSize {
		return
	}
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// EncryptFile encrypts src into dst for the given recipients. dst must not
// already exist; a partial dst is removed on failure.
func EncryptFile(src, dst string, recipients []age.Recipient) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dst, err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(dst)
		}
	}()

	w, err := age.Encrypt(out, recipients...)
	if err != nil {
		return fmt.Errorf("initialize encryption: %w", err)
	}
	if _, err = io.Copy(w, in); err != nil {
		return fmt.Errorf("encrypt %s: %w", src, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("finalize encryption: %w", err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}

// DecryptFile decrypts src into dst using the given identities. dst must
// not already exist; a partial dst is removed on failure.
func DecryptFile(src, dst string, identities ...age.Identity) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open %s: %w", src, err)
	}
	defer in.Close()

	r, err := age.Decrypt(in, identities...)
	if err != nil {
		return fmt.Errorf("decrypt %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dst, err)
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, r); err != nil {
		return fmt.Errorf("decrypt %s: %w", src, err)
	}
	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
