// Package git fetches setup scripts from a remote repository.
package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"snowadmin/internal/common"
	"snowadmin/pkg/errors"
)

// CheckoutOptions describes what to fetch.
type CheckoutOptions struct {
	URL    string
	Ref    string // branch name; the remote default branch when empty
	Subdir string // directory inside the repository holding the scripts
	Token  string // HTTPS token, sent as basic auth password
}

// Checkout is a shallow clone in a temporary directory.
type Checkout struct {
	root string
	dir  string
	head string
}

// Dir returns the script directory inside the clone.
func (c *Checkout) Dir() string { return c.dir }

// Head returns the checked out commit hash.
func (c *Checkout) Head() string { return c.head }

// Close removes the clone.
func (c *Checkout) Close() error {
	return os.RemoveAll(c.root)
}

// Service provides git operations for script sources
type Service struct {
	tempDir string
	depth   int
	logger  *slog.Logger
}

// NewService creates a new git service. Clones go under the system temp
// directory.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tempDir: os.TempDir(), depth: 1, logger: logger}
}

// Clone makes a shallow clone of opts.URL and resolves opts.Subdir inside
// it. The caller must Close the returned checkout.
func (s *Service) Clone(ctx context.Context, opts CheckoutOptions) (*Checkout, error) {
	if opts.URL == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "Repository URL is required")
	}

	root, err := os.MkdirTemp(s.tempDir, "snowadmin-scripts-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to create checkout directory")
	}
	if err := os.Chmod(root, common.DirPermissionSecure); err != nil {
		os.RemoveAll(root)
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "Failed to secure checkout directory")
	}

	cloneOpts := &git.CloneOptions{
		URL:          opts.URL,
		Auth:         authFor(opts.Token),
		SingleBranch: true,
		Depth:        s.depth,
	}
	if opts.Ref != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Ref)
	}

	s.logger.InfoContext(ctx, "cloning script repository",
		slog.String("url", redactURL(opts.URL)),
		slog.String("ref", opts.Ref))

	repo, err := git.PlainCloneContext(ctx, root, false, cloneOpts)
	if err != nil {
		os.RemoveAll(root)
		return nil, classifyCloneError(err, opts)
	}

	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(root)
		return nil, errors.Wrap(err, errors.ErrCodeRepoSyncFailed, "Failed to resolve HEAD")
	}

	dir := root
	if opts.Subdir != "" {
		dir, err = common.JoinPath(root, opts.Subdir)
		if err != nil {
			os.RemoveAll(root)
			return nil, errors.ValidationError("subdir", opts.Subdir, err.Error())
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			os.RemoveAll(root)
			return nil, errors.New(errors.ErrCodeFileNotFound,
				fmt.Sprintf("Directory %s not found in repository", opts.Subdir)).
				WithContext("ref", opts.Ref)
		}
	}

	s.logger.InfoContext(ctx, "checked out scripts",
		slog.String("commit", head.Hash().String()),
		slog.String("dir", filepath.Base(dir)))

	return &Checkout{root: root, dir: dir, head: head.Hash().String()}, nil
}

func authFor(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "git", Password: token}
}

func classifyCloneError(err error, opts CheckoutOptions) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "authorization"):
		return errors.Wrap(err, errors.ErrCodeRepoSyncFailed, "Authentication failed for repository").
			WithContext("url", redactURL(opts.URL)).
			WithSuggestions(
				"Check the git token secret in the vault",
				"Ensure the token has read access to the repository",
			)
	case strings.Contains(msg, "reference not found") || strings.Contains(msg, "couldn't find remote ref"):
		return errors.Wrap(err, errors.ErrCodeRepoSyncFailed, fmt.Sprintf("Branch %s not found", opts.Ref)).
			WithContext("ref", opts.Ref).
			WithSuggestions(fmt.Sprintf("Verify branch '%s' exists", opts.Ref))
	default:
		return errors.Wrap(err, errors.ErrCodeRepoSyncFailed, "Failed to clone repository").
			WithContext("url", redactURL(opts.URL))
	}
}

// redactURL drops userinfo from a URL before it is logged.
func redactURL(raw string) string {
	scheme := strings.Index(raw, "://")
	if scheme < 0 {
		return raw
	}
	rest := raw[scheme+3:]
	if at := strings.Index(rest, "@"); at >= 0 {
		if slash := strings.Index(rest, "/"); slash < 0 || at < slash {
			return raw[:scheme+3] + rest[at+1:]
		}
	}
	return raw
}
