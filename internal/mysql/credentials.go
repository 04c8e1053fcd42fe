package mysql

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/omvtools/mysqlkeeper/internal/types"
)

// credentialFileMode is owner read/write only. Anything looser leaks the
// database password to other local users.
const credentialFileMode = 0o600

// CredentialsWriter owns the durable credential files. No other component
// reads or writes them directly.
//
// Writers to the same path are serialized: the host environment allows a
// rotation and a restore to run concurrently, and interleaved writes would
// corrupt the file.
type CredentialsWriter struct {
	fs FS

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCredentialsWriter creates a CredentialsWriter using the given FS.
func NewCredentialsWriter(fs FS) *CredentialsWriter {
	return &CredentialsWriter{
		fs:    fs,
		locks: make(map[string]*sync.Mutex),
	}
}

func (w *CredentialsWriter) pathLock(path string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	lock, ok := w.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[path] = lock
	}
	return lock
}

// Write creates or overwrites the credential file at path with a single
// credential block for the given consumer kind, ending with owner-only
// permissions. The mode is tightened before any secret content is written;
// a mid-write failure removes the partial file.
func (w *CredentialsWriter) Write(path, username, password string, kind types.ConsumerKind) error {
	if err := validateCredentialValue("username", username); err != nil {
		return err
	}
	if err := validateCredentialValue("password", password); err != nil {
		return err
	}

	lock := w.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	// O_TRUNC discards any previous secret before the chmod below, so a
	// pre-existing world-readable file never exposes the new content.
	f, err := w.fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, credentialFileMode)
	if err != nil {
		return fmt.Errorf("cannot create credentials file %s: %w", path, err)
	}

	// The create mode only applies to new files; tighten explicitly in case
	// the file pre-existed with a looser mode.
	if err := f.Chmod(credentialFileMode); err != nil {
		f.Close()
		w.removePartial(path)
		return fmt.Errorf("cannot restrict permissions on %s: %w", path, err)
	}

	content := fmt.Sprintf("[%s]\nuser=%s\npassword=%s\n", kind.SectionName(), username, password)
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		w.removePartial(path)
		return fmt.Errorf("cannot write credentials file %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		w.removePartial(path)
		return fmt.Errorf("cannot close credentials file %s: %w", path, err)
	}
	return nil
}

// Remove deletes the credential file at path. Missing files are not an error.
func (w *CredentialsWriter) Remove(path string) error {
	lock := w.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := w.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot remove credentials file %s: %w", path, err)
	}
	return nil
}

func (w *CredentialsWriter) removePartial(path string) {
	_ = w.fs.Remove(path)
}

// validateCredentialValue rejects values that would break the ini line
// format or smuggle extra directives into the option file.
func validateCredentialValue(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("%s must not contain newline characters", field)
	}
	return nil
}
