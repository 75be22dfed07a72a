// Package repository implements the diff/commit/push operations of the
// publish pipeline on top of go-git.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/starford/notepub/internal/apperr"
)

// ErrStagedOutside is returned by Commit when the index holds changes
// outside the committed path.
var ErrStagedOutside = errors.New("repository: changes staged outside the output path")

// Options configures a Repo.
type Options struct {
	Path        string // any directory inside the working tree
	Remote      string
	Branch      string // empty pushes the remote's default refspecs
	AuthorName  string
	AuthorEmail string
	Username    string
	Token       string // enables HTTP basic auth when set
}

// Repo is a git working tree.
type Repo struct {
	repo   *git.Repository
	root   string
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

// Open opens the repository containing opts.Path.
func Open(opts Options, logger *slog.Logger) (*Repo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	repo, err := git.PlainOpenWithOptions(opts.Path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotARepository, opts.Path)
		}
		return nil, fmt.Errorf("repository: open %s: %w", opts.Path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("repository: worktree: %w", err)
	}
	if opts.Remote == "" {
		opts.Remote = git.DefaultRemoteName
	}
	return &Repo{
		repo:   repo,
		root:   wt.Filesystem.Root(),
		opts:   opts,
		now:    time.Now,
		logger: logger,
	}, nil
}

// Root returns the working tree root.
func (r *Repo) Root() string { return r.root }

// relPath converts path (absolute, or relative to the process working
// directory) into a slash-separated path relative to the working tree root.
func (r *Repo) relPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("repository: resolve %s: %w", path, err)
	}
	rootAbs, err := filepath.Abs(r.root)
	if err != nil {
		return "", fmt.Errorf("repository: resolve root: %w", err)
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		return "", fmt.Errorf("repository: %s: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("repository: %s is outside the working tree %s", path, r.root)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

type change struct {
	path    string
	deleted bool
	// staged is set when the index already holds the change and the
	// working tree matches it, so there is nothing left to add or remove.
	staged bool
}

func inPrefix(p, prefix string) bool {
	return prefix == "" || p == prefix || strings.HasPrefix(p, prefix+"/")
}

// isStaged reports whether the index differs from HEAD for this entry.
func isStaged(s *git.FileStatus) bool {
	return s.Staging != git.Unmodified && s.Staging != git.Untracked
}

// changes lists modified, added, deleted, and untracked files under prefix,
// plus the paths outside prefix that are already staged in the index.
func (r *Repo) changes(prefix string) (inside []change, stagedOutside []string, err error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("repository: worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, nil, fmt.Errorf("repository: status: %w", err)
	}
	for p, s := range status {
		if !inPrefix(p, prefix) {
			if isStaged(s) {
				stagedOutside = append(stagedOutside, p)
			}
			continue
		}
		if s.Staging == git.Unmodified && s.Worktree == git.Unmodified {
			continue
		}
		inside = append(inside, change{
			path:    p,
			deleted: s.Worktree == git.Deleted,
			staged:  isStaged(s) && s.Worktree == git.Unmodified,
		})
	}
	sort.Slice(inside, func(i, j int) bool { return inside[i].path < inside[j].path })
	sort.Strings(stagedOutside)
	return inside, stagedOutside, nil
}

// HasChanges reports whether anything under path differs from HEAD.
func (r *Repo) HasChanges(_ context.Context, path string) (bool, error) {
	prefix, err := r.relPath(path)
	if err != nil {
		return false, err
	}
	changed, _, err := r.changes(prefix)
	if err != nil {
		return false, err
	}
	r.logger.Debug("repository: status", slog.String("path", prefix), slog.Int("changed", len(changed)))
	return len(changed) > 0, nil
}

// Commit stages every change under path and records one commit.
func (r *Repo) Commit(_ context.Context, path, message string) error {
	prefix, err := r.relPath(path)
	if err != nil {
		return err
	}
	changed, stagedOutside, err := r.changes(prefix)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return fmt.Errorf("repository: nothing to commit under %s", path)
	}
	// A commit is built from the whole index, so anything staged elsewhere
	// would be published along with the output.
	if len(stagedOutside) > 0 {
		return fmt.Errorf("%w: %s", ErrStagedOutside, strings.Join(stagedOutside, ", "))
	}

	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("repository: worktree: %w", err)
	}
	for _, c := range changed {
		if c.staged {
			continue
		}
		if c.deleted {
			if _, err := wt.Remove(c.path); err != nil {
				return fmt.Errorf("repository: stage removal of %s: %w", c.path, err)
			}
			continue
		}
		if _, err := wt.Add(c.path); err != nil {
			return fmt.Errorf("repository: stage %s: %w", c.path, err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.opts.AuthorName,
			Email: r.opts.AuthorEmail,
			When:  r.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	r.logger.Info("repository: committed",
		slog.String("commit", hash.String()[:8]),
		slog.Int("files", len(changed)),
		slog.String("message", message))
	return nil
}

// Push sends local commits to the configured remote. An up-to-date remote is not an error.
func (r *Repo) Push(ctx context.Context) error {
	opts := &git.PushOptions{
		RemoteName: r.opts.Remote,
		Auth:       r.auth(),
	}
	if r.opts.Branch != "" {
		ref := "refs/heads/" + r.opts.Branch
		opts.RefSpecs = []gitconfig.RefSpec{gitconfig.RefSpec(ref + ":" + ref)}
	}

	err := r.repo.PushContext(ctx, opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		r.logger.Info("repository: remote already up to date", slog.String("remote", r.opts.Remote))
		return nil
	}
	if err != nil {
		return fmt.Errorf("repository: push %s: %w", r.opts.Remote, err)
	}
	r.logger.Info("repository: pushed", slog.String("remote", r.opts.Remote), slog.String("branch", r.opts.Branch))
	return nil
}

func (r *Repo) auth() transport.AuthMethod {
	if r.opts.Token == "" {
		return nil
	}
	user := r.opts.Username
	if user == "" {
		// Token-based hosts accept any non-empty username.
		user = "git"
	}
	return &githttp.BasicAuth{Username: user, Password: r.opts.Token}
}
