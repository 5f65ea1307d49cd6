package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/wizzcloud/wizzcloud-cli/cloud"
	"github.com/wizzcloud/wizzcloud-cli/tui"
)

var errUsage = errors.New("usage error")

func usage() {
	fmt.Fprint(os.Stderr, `Usage: wizzcloud-cli [flags] <command> [args]

Commands:
  register <fullName> <email> <password>   create an account
  verify <email> <code>                    confirm the emailed code
  login <email> <password>                 sign in
  ls                                       list stored files (default)
  upload <path>                            upload a file
  download <id> [dir]                      download a file by id
  open <id>                                fetch a file's content into the local cache
  rm <id>                                  delete a file by id
  whoami                                   show the signed-in user
  logout                                   sign out
  delete-account                           delete the account and all files
`)
}

// run dispatches one command. All user-facing output goes through d; the
// returned error only decides the process exit code.
func run(d tui.Displayer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := cloud.OpenSession(sessionFile)
	blobs, err := cloud.NewBlobCache(cacheDir)
	if err != nil {
		d.Fatal(err)
		return err
	}
	client := cloud.NewClient(serverURL, retryClient, session, blobs, d)

	cmd := "ls"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	if err := dispatch(ctx, d, client, cmd, args); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		} else {
			d.Fatal(err)
		}
		return err
	}
	return nil
}

func dispatch(
	ctx context.Context,
	d tui.Displayer,
	client *cloud.Client,
	cmd string,
	args []string,
) error {
	switch cmd {
	case "register":
		if len(args) != 3 {
			return errUsage
		}
		if err := client.Register(ctx, args[0], args[1], args[2]); err != nil {
			return err
		}
		d.Registered(args[1])
		return nil

	case "verify":
		if len(args) != 2 {
			return errUsage
		}
		if _, err := client.VerifyEmail(ctx, args[0], args[1]); err != nil {
			return err
		}
		d.SignedIn(fetchNickname(ctx, client, args[0]))
		return nil

	case "login":
		if len(args) != 2 {
			return errUsage
		}
		result, err := client.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if result.VerificationRequired {
			d.VerificationRequired(args[0])
			return nil
		}
		d.SignedIn(fetchNickname(ctx, client, args[0]))
		return nil

	case "ls":
		if err := requireSession(d, client); err != nil {
			return err
		}
		files, err := client.ListFiles(ctx)
		if err != nil {
			return err
		}
		d.FilesListed(fileRows(files))
		return nil

	case "upload":
		if len(args) != 1 {
			return errUsage
		}
		if err := requireSession(d, client); err != nil {
			return err
		}
		userID, err := client.UserID()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		name := filepath.Base(args[0])
		d.Uploading(name)
		if err := client.Upload(ctx, userID, name, f); err != nil {
			return err
		}
		d.Uploaded(name)
		return nil

	case "download":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		if err := requireSession(d, client); err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid file id %q", args[0])
		}
		dir := "."
		if len(args) == 2 {
			dir = args[1]
		}
		path, err := client.Download(ctx, id, dir)
		if err != nil {
			return err
		}
		d.Downloaded(path)
		return nil

	case "open":
		if len(args) != 1 {
			return errUsage
		}
		if err := requireSession(d, client); err != nil {
			return err
		}
		file, err := findFile(ctx, client, args[0])
		if err != nil {
			return err
		}
		path, err := client.Blob(ctx, file)
		if err != nil {
			return err
		}
		d.BlobReady(file.Name, path)
		return nil

	case "rm":
		if len(args) != 1 {
			return errUsage
		}
		if err := requireSession(d, client); err != nil {
			return err
		}
		file, err := findFile(ctx, client, args[0])
		if err != nil {
			return err
		}
		if err := client.DeleteFile(ctx, file); err != nil {
			return err
		}
		d.FileDeleted(file.Name)
		return nil

	case "whoami":
		if err := requireSession(d, client); err != nil {
			return err
		}
		if nickname, ok := client.Session().Nickname(); ok {
			d.SignedIn(nickname)
			return nil
		}
		userID, err := client.UserID()
		if err != nil {
			return err
		}
		nickname, err := client.Nickname(ctx, userID)
		if err != nil {
			return err
		}
		d.SignedIn(nickname)
		return nil

	case "logout":
		if err := requireSession(d, client); err != nil {
			return err
		}
		if err := client.Logout(ctx); err != nil {
			return err
		}
		d.SignedOut()
		return nil

	case "delete-account":
		if err := requireSession(d, client); err != nil {
			return err
		}
		userID, err := client.UserID()
		if err != nil {
			return err
		}
		if err := client.DeleteAccount(ctx, userID); err != nil {
			return err
		}
		d.AccountDeleted()
		return nil

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		return errUsage
	}
}

// requireSession announces the session state and refuses authenticated
// commands when no credential is stored.
func requireSession(d tui.Displayer, client *cloud.Client) error {
	if _, ok := client.Session().AccessToken(); !ok {
		d.SessionNotFound()
		return cloud.ErrNoSession
	}
	nickname, _ := client.Session().Nickname()
	d.SessionFound(nickname)
	return nil
}

// fetchNickname resolves the display name right after sign-in, falling back
// to the email when the profile lookup fails. Sign-in itself has already
// succeeded at this point, so the fallback is cosmetic.
func fetchNickname(ctx context.Context, client *cloud.Client, email string) string {
	userID, err := client.UserID()
	if err != nil {
		return email
	}
	nickname, err := client.Nickname(ctx, userID)
	if err != nil || nickname == "" {
		return email
	}
	return nickname
}

// findFile resolves a file id argument against the stored file list.
func findFile(ctx context.Context, client *cloud.Client, arg string) (cloud.File, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return cloud.File{}, fmt.Errorf("invalid file id %q", arg)
	}
	files, err := client.ListFiles(ctx)
	if err != nil {
		return cloud.File{}, err
	}
	for _, f := range files {
		if f.ID == id {
			return f, nil
		}
	}
	return cloud.File{}, fmt.Errorf("no file with id %d", id)
}

// fileRows converts API files into display rows.
func fileRows(files []cloud.File) []tui.FileRow {
	rows := make([]tui.FileRow, 0, len(files))
	for _, f := range files {
		rows = append(rows, tui.FileRow{
			ID:      f.ID,
			Name:    f.Name,
			Size:    f.Size,
			Updated: f.UpdatedAt,
		})
	}
	return rows
}
