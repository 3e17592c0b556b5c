package flagutil

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestAddFlagsDefaults(t *testing.T) {
	configDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configDir)
	t.Setenv("GITHUB_OWNER", "IQSS")
	t.Setenv("GITHUB_REPO", "")

	var o GitHubOptions
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	o.AddFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}

	if expected := filepath.Join(configDir, "redmine2github", "github-token"); o.TokenPath != expected {
		t.Errorf("expected token path %q, got %q", expected, o.TokenPath)
	}
	if o.Owner != "IQSS" {
		t.Errorf("expected owner from environment, got %q", o.Owner)
	}
	if o.ImportEndpoint != "https://api.github.com" {
		t.Errorf("unexpected import endpoint %q", o.ImportEndpoint)
	}
	if err := o.Validate(); err == nil {
		t.Errorf("expected validation error without repository")
	}
}

func TestAddPFlags(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var o GitHubOptions
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddPFlags(fs)
	if err := fs.Parse([]string{"--github.owner=IQSS", "--github.repo=dataverse", "--github-token-path=/tmp/token"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.Owner != "IQSS" || o.Repo != "dataverse" || o.TokenPath != "/tmp/token" {
		t.Errorf("flags not bound: %+v", o)
	}
	if err := o.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestToken(t *testing.T) {
	dir := t.TempDir()
	o := GitHubOptions{}

	o.TokenPath = filepath.Join(dir, "token")
	if err := os.WriteFile(o.TokenPath, []byte("  secret\n"), 0600); err != nil {
		t.Fatal(err)
	}
	token, err := o.Token()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(token) != "secret" {
		t.Errorf("expected trimmed token, got %q", token)
	}

	o.TokenPath = filepath.Join(dir, "empty")
	if err := os.WriteFile(o.TokenPath, []byte("\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Token(); err == nil {
		t.Errorf("expected error for empty token file")
	}

	o.TokenPath = filepath.Join(dir, "missing")
	if _, err := o.Token(); err == nil {
		t.Errorf("expected error for missing token file")
	}
}
