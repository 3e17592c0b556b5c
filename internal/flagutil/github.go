package flagutil

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	prowflagutil "sigs.k8s.io/prow/pkg/flagutil"
	"sigs.k8s.io/prow/pkg/github"

	"github.com/petr-muller/redmine2github/internal/config"
	"github.com/petr-muller/redmine2github/internal/importer"
)

const tokenPathFlag string = "github-token-path"

// GitHubOptions holds the GitHub credentials and the repository issues are migrated into
type GitHubOptions struct {
	prowflagutil.GitHubOptions

	Owner          string
	Repo           string
	ImportEndpoint string
}

// AddFlags injects GitHub options into the given FlagSet
func (o *GitHubOptions) AddFlags(fs *flag.FlagSet) {
	o.GitHubOptions.AddFlags(fs)

	// Point the prow token flag at the user config dir instead of the in-cluster secret
	if f := fs.Lookup(tokenPathFlag); f != nil {
		defaultTokenPath := config.DefaultTokenPath()
		f.DefValue = defaultTokenPath
		_ = f.Value.Set(defaultTokenPath)
	}

	fs.StringVar(&o.Owner, "github.owner", os.Getenv(config.EnvGitHubOwner), "GitHub organization or user owning the target repository")
	fs.StringVar(&o.Repo, "github.repo", os.Getenv(config.EnvGitHubRepo), "GitHub repository to migrate issues into")
	fs.StringVar(&o.ImportEndpoint, "github.import-endpoint", importer.DefaultEndpoint, "GitHub API endpoint serving the issue import API")
}

// AddPFlags injects GitHub options into the given pflag.FlagSet
func (o *GitHubOptions) AddPFlags(fs *pflag.FlagSet) {
	goFlags := flag.NewFlagSet("github", flag.ContinueOnError)
	o.AddFlags(goFlags)
	fs.AddGoFlagSet(goFlags)
}

func (o *GitHubOptions) Validate() error {
	var errs []error
	if o.Owner == "" {
		errs = append(errs, errors.New("--github.owner must be specified"))
	}
	if o.Repo == "" {
		errs = append(errs, errors.New("--github.repo must be specified"))
	}
	if o.TokenPath == "" {
		errs = append(errs, fmt.Errorf("--%s must be specified", tokenPathFlag))
	}
	if err := o.GitHubOptions.Validate(false); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Token reads the GitHub token from the token file
func (o *GitHubOptions) Token() ([]byte, error) {
	raw, err := os.ReadFile(o.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read GitHub token: %w", err)
	}
	token := []byte(strings.TrimSpace(string(raw)))
	if len(token) == 0 {
		return nil, fmt.Errorf("GitHub token file %s is empty", o.TokenPath)
	}
	return token, nil
}

// ImportClient creates the client submitting issue imports and editing migrated issues
func (o *GitHubOptions) ImportClient(dryRun bool) (*importer.Client, error) {
	token, err := o.Token()
	if err != nil {
		return nil, err
	}

	var issues github.Client
	issues, err = o.GitHubClient(dryRun)
	if err != nil {
		return nil, fmt.Errorf("cannot create GitHub client: %w", err)
	}

	return importer.New(importer.Options{
		Endpoint: o.ImportEndpoint,
		Owner:    o.Owner,
		Repo:     o.Repo,
		Token:    func() []byte { return token },
		Issues:   issues,
		DryRun:   dryRun,
	})
}
