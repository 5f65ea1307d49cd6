package main

import (
	"fmt"
	"testing"

	retry "github.com/appleboy/go-httpretry"
)

func init() {
	// Set default values for tests (don't call initConfig to avoid flag parsing)
	if serverURL == "" {
		serverURL = "http://localhost:1222/wizzcloud"
	}
	if sessionFile == "" {
		sessionFile = ".wizzcloud-session.json"
	}
	if cacheDir == "" {
		cacheDir = ".wizzcloud-cache"
	}
	if retryClient == nil {
		var err error
		retryClient, err = retry.NewClient()
		if err != nil {
			panic(fmt.Sprintf("failed to create retry client: %v", err))
		}
	}
}

func TestValidateServerURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid https", "https://cloud.example.com/wizzcloud", false},
		{"valid http", "http://localhost:1222/wizzcloud", false},
		{"empty", "", true},
		{"no scheme", "cloud.example.com", true},
		{"bad scheme", "ftp://cloud.example.com", true},
		{"no host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServerURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateServerURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestPick(t *testing.T) {
	if got := pick("from-flag", "from-env"); got != "from-flag" {
		t.Errorf("Expected flag value to win, got %q", got)
	}
	if got := pick("", "from-env"); got != "from-env" {
		t.Errorf("Expected env value when flag unset, got %q", got)
	}
}
