package tui

import (
	"fmt"
	"io"

	tea "charm.land/bubbletea/v2"
)

// FileRow is one file as shown in the dashboard table.
type FileRow struct {
	ID      int64
	Name    string
	Size    int64
	Updated string
}

// Displayer abstracts all user-facing output of the client, so the same
// flow can render through BubbleTea on a TTY and plain text everywhere
// else.
type Displayer interface {
	Banner()
	SessionFound(nickname string)
	SessionNotFound()
	Refreshing()
	RefreshOK()
	RefreshFailed(err error)
	AccessTokenRejected()
	TokenRefreshedRetrying()
	SessionEnded()
	Registered(email string)
	VerificationRequired(email string)
	SignedIn(nickname string)
	SignedOut()
	AccountDeleted()
	FilesListed(files []FileRow)
	Uploading(name string)
	Uploaded(name string)
	Downloaded(path string)
	FileDeleted(name string)
	BlobReady(name, path string)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w. Used when stderr is not a
// TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	w io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) Banner() {
	fmt.Fprintln(p.w, "=== WizzCloud ===")
}

func (p *PlainDisplayer) SessionFound(nickname string) {
	if nickname != "" {
		fmt.Fprintf(p.w, "Signed in as %s\n", nickname)
		return
	}
	fmt.Fprintln(p.w, "Found existing session")
}

func (p *PlainDisplayer) SessionNotFound() {
	fmt.Fprintln(p.w, "No session found, please sign in")
}

func (p *PlainDisplayer) Refreshing() {
	fmt.Fprintln(p.w, "Refreshing access token...")
}

func (p *PlainDisplayer) RefreshOK() {
	fmt.Fprintln(p.w, "Token refreshed successfully")
}

func (p *PlainDisplayer) RefreshFailed(err error) {
	fmt.Fprintf(p.w, "Refresh failed: %v\n", err)
}

func (p *PlainDisplayer) AccessTokenRejected() {
	fmt.Fprintln(p.w, "Access token rejected (401), refreshing...")
}

func (p *PlainDisplayer) TokenRefreshedRetrying() {
	fmt.Fprintln(p.w, "Token refreshed, retrying request...")
}

func (p *PlainDisplayer) SessionEnded() {
	fmt.Fprintln(p.w, "Session ended, please sign in again")
}

func (p *PlainDisplayer) Registered(email string) {
	fmt.Fprintf(p.w, "Registered %s. Check your inbox for the verification code.\n", email)
}

func (p *PlainDisplayer) VerificationRequired(email string) {
	fmt.Fprintf(p.w, "Email %s is not verified yet. Run: wizzcloud-cli verify %s <code>\n",
		email, email)
}

func (p *PlainDisplayer) SignedIn(nickname string) {
	fmt.Fprintf(p.w, "Welcome, %s!\n", nickname)
}

func (p *PlainDisplayer) SignedOut() {
	fmt.Fprintln(p.w, "Signed out")
}

func (p *PlainDisplayer) AccountDeleted() {
	fmt.Fprintln(p.w, "Account deleted")
}

func (p *PlainDisplayer) FilesListed(files []FileRow) {
	if len(files) == 0 {
		fmt.Fprintln(p.w, "No files found")
		return
	}
	for _, f := range files {
		fmt.Fprintf(p.w, "%8d  %10s  %-19s  %s\n", f.ID, formatSize(f.Size), f.Updated, f.Name)
	}
}

func (p *PlainDisplayer) Uploading(name string) {
	fmt.Fprintf(p.w, "Uploading %s...\n", name)
}

func (p *PlainDisplayer) Uploaded(name string) {
	fmt.Fprintf(p.w, "Uploaded %s\n", name)
}

func (p *PlainDisplayer) Downloaded(path string) {
	fmt.Fprintf(p.w, "Saved to %s\n", path)
}

func (p *PlainDisplayer) FileDeleted(name string) {
	fmt.Fprintf(p.w, "Deleted %s\n", name)
}

func (p *PlainDisplayer) BlobReady(name, path string) {
	fmt.Fprintf(p.w, "%s cached at %s\n", name, path)
}

func (p *PlainDisplayer) Fatal(err error) {
	fmt.Fprintf(p.w, "Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                       {}
func (NoopDisplayer) SessionFound(_ string)         {}
func (NoopDisplayer) SessionNotFound()              {}
func (NoopDisplayer) Refreshing()                   {}
func (NoopDisplayer) RefreshOK()                    {}
func (NoopDisplayer) RefreshFailed(_ error)         {}
func (NoopDisplayer) AccessTokenRejected()          {}
func (NoopDisplayer) TokenRefreshedRetrying()       {}
func (NoopDisplayer) SessionEnded()                 {}
func (NoopDisplayer) Registered(_ string)           {}
func (NoopDisplayer) VerificationRequired(_ string) {}
func (NoopDisplayer) SignedIn(_ string)             {}
func (NoopDisplayer) SignedOut()                    {}
func (NoopDisplayer) AccountDeleted()               {}
func (NoopDisplayer) FilesListed(_ []FileRow)       {}
func (NoopDisplayer) Uploading(_ string)            {}
func (NoopDisplayer) Uploaded(_ string)             {}
func (NoopDisplayer) Downloaded(_ string)           {}
func (NoopDisplayer) FileDeleted(_ string)          {}
func (NoopDisplayer) BlobReady(_, _ string)         {}
func (NoopDisplayer) Fatal(_ error)                 {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) SessionFound(nickname string) {
	t.p.Send(MsgSessionFound{Nickname: nickname})
}

func (t *ProgramDisplayer) SessionNotFound() {
	t.p.Send(MsgSessionNotFound{})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) RefreshFailed(err error) {
	t.p.Send(MsgRefreshFailed{Err: err})
}

func (t *ProgramDisplayer) AccessTokenRejected() {
	t.p.Send(MsgAccessTokenRejected{})
}

func (t *ProgramDisplayer) TokenRefreshedRetrying() {
	t.p.Send(MsgTokenRefreshedRetrying{})
}

func (t *ProgramDisplayer) SessionEnded() {
	t.p.Send(MsgSessionEnded{})
}

func (t *ProgramDisplayer) Registered(email string) {
	t.p.Send(MsgRegistered{Email: email})
}

func (t *ProgramDisplayer) VerificationRequired(email string) {
	t.p.Send(MsgVerificationRequired{Email: email})
}

func (t *ProgramDisplayer) SignedIn(nickname string) {
	t.p.Send(MsgSignedIn{Nickname: nickname})
}

func (t *ProgramDisplayer) SignedOut() {
	t.p.Send(MsgSignedOut{})
}

func (t *ProgramDisplayer) AccountDeleted() {
	t.p.Send(MsgAccountDeleted{})
}

func (t *ProgramDisplayer) FilesListed(files []FileRow) {
	t.p.Send(MsgFilesListed{Files: files})
}

func (t *ProgramDisplayer) Uploading(name string) {
	t.p.Send(MsgUploading{Name: name})
}

func (t *ProgramDisplayer) Uploaded(name string) {
	t.p.Send(MsgUploaded{Name: name})
}

func (t *ProgramDisplayer) Downloaded(path string) {
	t.p.Send(MsgDownloaded{Path: path})
}

func (t *ProgramDisplayer) FileDeleted(name string) {
	t.p.Send(MsgFileDeleted{Name: name})
}

func (t *ProgramDisplayer) BlobReady(name, path string) {
	t.p.Send(MsgBlobReady{Name: name, Path: path})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}

// formatSize renders a byte count with a binary unit suffix.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
