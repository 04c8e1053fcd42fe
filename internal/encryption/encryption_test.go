package encryption

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
)

const testPassphrase = "correct-horse-battery"

func TestDeriveRecipientFromPassphrase_Deterministic(t *testing.T) {
	first, err := DeriveRecipientFromPassphrase(testPassphrase)
	if err != nil {
		t.Fatalf("DeriveRecipientFromPassphrase: %v", err)
	}
	second, err := DeriveRecipientFromPassphrase(testPassphrase)
	if err != nil {
		t.Fatalf("DeriveRecipientFromPassphrase: %v", err)
	}
	if first != second {
		t.Fatalf("derivation not deterministic: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, "age1") {
		t.Fatalf("recipient %q does not look like an age recipient", first)
	}

	other, err := DeriveRecipientFromPassphrase(testPassphrase + "x")
	if err != nil {
		t.Fatalf("DeriveRecipientFromPassphrase: %v", err)
	}
	if other == first {
		t.Fatal("different passphrases derived the same recipient")
	}
}

func TestDeriveIdentityMatchesRecipient(t *testing.T) {
	recipientStr, err := DeriveRecipientFromPassphrase(testPassphrase)
	if err != nil {
		t.Fatalf("DeriveRecipientFromPassphrase: %v", err)
	}
	identity, err := DeriveIdentityFromPassphrase(testPassphrase)
	if err != nil {
		t.Fatalf("DeriveIdentityFromPassphrase: %v", err)
	}

	x25519, ok := identity.(*age.X25519Identity)
	if !ok {
		t.Fatalf("identity type = %T; want *age.X25519Identity", identity)
	}
	if x25519.Recipient().String() != recipientStr {
		t.Fatalf("identity recipient %q != derived recipient %q",
			x25519.Recipient().String(), recipientStr)
	}
}

func TestValidatePassphrase(t *testing.T) {
	if err := ValidatePassphrase("short"); err == nil {
		t.Fatal("short passphrase accepted")
	}
	if err := ValidatePassphrase(testPassphrase); err != nil {
		t.Fatalf("valid passphrase rejected: %v", err)
	}
}

func TestEncryptDecryptFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "dump.sql")
	enc := filepath.Join(dir, "dump.sql.age")
	dec := filepath.Join(dir, "restored.sql")

	payload := []byte("-- MySQL dump\nCREATE DATABASE example;\n")
	if err := os.WriteFile(src, payload, 0o640); err != nil {
		t.Fatalf("write source: %v", err)
	}

	recipientStr, err := DeriveRecipientFromPassphrase(testPassphrase)
	if err != nil {
		t.Fatalf("derive recipient: %v", err)
	}
	recipients, err := ParseRecipients([]string{recipientStr})
	if err != nil {
		t.Fatalf("parse recipients: %v", err)
	}

	if err := EncryptFile(src, enc, recipients); err != nil {
		t.Fatalf("EncryptFile: %v", err)
	}

	identity, err := DeriveIdentityFromPassphrase(testPassphrase)
	if err != nil {
		t.Fatalf("derive identity: %v", err)
	}
	if err := DecryptFile(enc, dec, identity); err != nil {
		t.Fatalf("DecryptFile: %v", err)
	}

	restored, err := os.ReadFile(dec)
	if err != nil {
		t.Fatalf("read decrypted file: %v", err)
	}
	if string(restored) != string(payload) {
		t.Fatalf("decrypted content mismatch:\ngot  %q\nwant %q", restored, payload)
	}
}

func TestEncryptFile_RefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "dump.sql")
	dst := filepath.Join(dir, "dump.sql.age")

	if err := os.WriteFile(src, []byte("data"), 0o640); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := os.WriteFile(dst, []byte("existing"), 0o640); err != nil {
		t.Fatalf("write destination: %v", err)
	}

	recipientStr, err := DeriveRecipientFromPassphrase(testPassphrase)
	if err != nil {
		t.Fatalf("derive recipient: %v", err)
	}
	recipients, err := ParseRecipients([]string{recipientStr})
	if err != nil {
		t.Fatalf("parse recipients: %v", err)
	}

	if err := EncryptFile(src, dst, recipients); err == nil {
		t.Fatal("EncryptFile overwrote an existing destination")
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "existing" {
		t.Fatalf("pre-existing destination was modified: %q, %v", data, err)
	}
}

func TestParseRecipients_Errors(t *testing.T) {
	if _, err := ParseRecipients(nil); err == nil {
		t.Fatal("empty recipient list accepted")
	}
	if _, err := ParseRecipients([]string{"not-a-recipient"}); err == nil {
		t.Fatal("malformed recipient accepted")
	}
}

func TestReadRecipientFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recipients.txt")
	content := "# primary\nage1abc\n\nage1def\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write recipient file: %v", err)
	}

	recipients, err := ReadRecipientFile(path)
	if err != nil {
		t.Fatalf("ReadRecipientFile: %v", err)
	}
	if len(recipients) != 2 || recipients[0] != "age1abc" || recipients[1] != "age1def" {
		t.Fatalf("recipients = %v; want [age1abc age1def]", recipients)
	}
}
