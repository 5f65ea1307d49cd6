package main

import (
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	tea "charm.land/bubbletea/v2"
	"github.com/wizzcloud/wizzcloud-cli/tui"
)

var (
	serverURL         string
	sessionFile       string
	cacheDir          string
	flagServerURL     *string
	flagSessionFile   *string
	flagCacheDir      *string
	configInitialized bool
	retryClient       *retry.Client
)

// envConfig is the environment layer of the configuration. Flags override
// these values; the defaults mirror the original WizzCloud deployment.
type envConfig struct {
	ServerURL   string `env:"WIZZCLOUD_SERVER_URL" env-default:"http://localhost:1222/wizzcloud"`
	SessionFile string `env:"WIZZCLOUD_SESSION_FILE" env-default:".wizzcloud-session.json"`
	CacheDir    string `env:"WIZZCLOUD_CACHE_DIR" env-default:".wizzcloud-cache"`
}

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagServerURL = flag.String(
		"server-url",
		"",
		"WizzCloud server URL (default: http://localhost:1222/wizzcloud or WIZZCLOUD_SERVER_URL env)",
	)
	flagSessionFile = flag.String(
		"session-file",
		"",
		"Session storage file (default: .wizzcloud-session.json or WIZZCLOUD_SESSION_FILE env)",
	)
	flagCacheDir = flag.String(
		"cache-dir",
		"",
		"Blob cache directory (default: .wizzcloud-cache or WIZZCLOUD_CACHE_DIR env)",
	)
}

// initConfig parses flags and initializes configuration
// Separated from init() to avoid conflicts with test flag parsing
func initConfig() {
	if configInitialized {
		return
	}
	configInitialized = true

	flag.Parse()

	var env envConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read environment: %v\n", err)
		os.Exit(1)
	}

	// Priority: flag > env > default
	serverURL = pick(*flagServerURL, env.ServerURL)
	sessionFile = pick(*flagSessionFile, env.SessionFile)
	cacheDir = pick(*flagCacheDir, env.CacheDir)

	// Validate server URL format
	if err := validateServerURL(serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid server URL: %v\n", err)
		os.Exit(1)
	}

	// Warn if using HTTP instead of HTTPS
	if strings.HasPrefix(strings.ToLower(serverURL), "http://") {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(
			os.Stderr,
			"⚠️  This is only safe for local development. Use HTTPS in production.",
		)
		fmt.Fprintln(os.Stderr)
	}

	// Initialize HTTP client with retry support
	baseHTTPClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		},
	}

	var err error
	retryClient, err = retry.NewBackgroundClient(
		retry.WithHTTPClient(baseHTTPClient),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create retry client: %v", err))
	}
}

// pick returns the flag value when set, the env/default value otherwise.
func pick(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return envValue
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	initConfig()
	args := flag.Args()

	if isTTY() {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr := run(d, args)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
		if runErr != nil {
			os.Exit(1)
		}
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		if err := run(d, args); err != nil {
			os.Exit(1)
		}
	}
}
