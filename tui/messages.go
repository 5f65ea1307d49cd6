package tui

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgSessionFound signals that a stored session was loaded.
type MsgSessionFound struct{ Nickname string }

// MsgSessionNotFound signals that no stored session exists.
type MsgSessionNotFound struct{}

// MsgRefreshing signals that a token refresh is in progress.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the token was refreshed successfully.
type MsgRefreshOK struct{}

// MsgRefreshFailed signals that the token refresh failed.
type MsgRefreshFailed struct{ Err error }

// MsgAccessTokenRejected signals that the server answered 401.
type MsgAccessTokenRejected struct{}

// MsgTokenRefreshedRetrying signals that the original request is being
// replayed with the refreshed token.
type MsgTokenRefreshedRetrying struct{}

// MsgSessionEnded signals that credentials were cleared after an
// unrecoverable refresh failure.
type MsgSessionEnded struct{}

// MsgRegistered signals that the account was created and awaits email
// verification.
type MsgRegistered struct{ Email string }

// MsgVerificationRequired signals that login was refused pending email
// verification.
type MsgVerificationRequired struct{ Email string }

// MsgSignedIn signals a completed sign-in.
type MsgSignedIn struct{ Nickname string }

// MsgSignedOut signals a completed sign-out.
type MsgSignedOut struct{}

// MsgAccountDeleted signals that the account was removed.
type MsgAccountDeleted struct{}

// MsgFilesListed delivers the file table contents.
type MsgFilesListed struct{ Files []FileRow }

// MsgUploading signals that an upload has started.
type MsgUploading struct{ Name string }

// MsgUploaded signals a completed upload.
type MsgUploaded struct{ Name string }

// MsgDownloaded signals a completed download.
type MsgDownloaded struct{ Path string }

// MsgFileDeleted signals a completed file deletion.
type MsgFileDeleted struct{ Name string }

// MsgBlobReady signals that a file's content is available locally.
type MsgBlobReady struct{ Name, Path string }

// MsgFatal signals a fatal error that terminates the command.
type MsgFatal struct{ Err error }
