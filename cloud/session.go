package cloud

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Credential is an access/refresh token pair. The access token is short
// lived and authorizes individual requests; the refresh token is single-use
// and rotated on every exchange, so a refresh must always replace both.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// sessionState is the persisted session file layout.
type sessionState struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	DeviceID     string `json:"device_id,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
}

// Session owns all mutable client state: the credential pair, the stable
// device identifier and the cached display name. It holds an in-memory copy
// loaded at open and writes through to a JSON file guarded by a lock file,
// so credentials survive restarts and concurrent processes don't corrupt
// the file.
type Session struct {
	path string

	mu    sync.Mutex
	state sessionState
}

// OpenSession loads the session file at path. A missing or unreadable file
// yields an empty session; corruption is not an error, just a fresh start.
func OpenSession(path string) *Session {
	s := &Session{path: path}
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &s.state)
	}
	return s
}

// AccessToken returns the stored access token, if any.
func (s *Session) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken, s.state.AccessToken != ""
}

// RefreshToken returns the stored refresh token, if any.
func (s *Session) RefreshToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RefreshToken, s.state.RefreshToken != ""
}

// Nickname returns the cached display name, if any.
func (s *Session) Nickname() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Nickname, s.state.Nickname != ""
}

// SetNickname caches the display name.
func (s *Session) SetNickname(nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Nickname = nickname
	return s.persistLocked()
}

// SetCredential stores both tokens, replacing any previous pair. The old
// refresh token becomes invalid server-side once rotated and must never be
// reused, so there is no partial update path.
func (s *Session) SetCredential(cred Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AccessToken = cred.AccessToken
	s.state.RefreshToken = cred.RefreshToken
	return s.persistLocked()
}

// Clear wipes the credential pair and the cached nickname, both in memory
// and on disk. The device identifier survives: it belongs to the
// installation, not to the signed-in user.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.AccessToken = ""
	s.state.RefreshToken = ""
	s.state.Nickname = ""
	return s.persistLocked()
}

// DeviceID returns the stable installation identifier, generating and
// persisting a random one on first use. Persistence failures are not
// surfaced: the generated id is still returned, and the next call simply
// generates a new one if storage keeps failing.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.DeviceID == "" {
		s.state.DeviceID = uuid.NewString()
		_ = s.persistLocked()
	}
	return s.state.DeviceID
}

// persistLocked writes the session file under the file lock, using a temp
// file and atomic rename so a crash never leaves a half-written session.
// Callers must hold s.mu.
func (s *Session) persistLocked() error {
	lock, err := acquireFileLock(s.path)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil {
			fmt.Fprintf(os.Stderr, "failed to release lock: %v\n", releaseErr)
		}
	}()

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, s.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf(
				"failed to rename temp file: %v; additionally failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
