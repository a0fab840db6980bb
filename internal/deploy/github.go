// internal/deploy/github.go
//
// GitHub Pages publishing through go-git.
//
// Workflow
// --------
//  1. Clone the Pages branch at depth 1 into memory storage and a memfs
//     worktree, or start an orphan branch when the remote has none.
//  2. Clear the worktree and copy the directory output in, adding
//     `.nojekyll` and, when the directory has a domain, a `CNAME`.
//  3. Commit everything and push.  A clean tree is not an error.
//
// Notes
// -----
//   - A token authenticates as `x-access-token` over HTTPS.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/config"
)

// DefaultPagesBranch is used when neither config nor directory names one.
const DefaultPagesBranch = "gh-pages"

// GitHub replaces the content of a Pages branch with the directory output
// and pushes one commit.  Everything happens in memory: the branch is
// cloned at depth 1 into a billy memfs worktree, or started as an orphan
// when it does not exist yet.
type GitHub struct {
	cfg config.GitHub
}

func (d *GitHub) Name() string { return "github" }

// RepoURL expands "owner/name" to an HTTPS clone URL.  Full URLs, scp-style
// addresses, and local paths are returned unchanged.
func RepoURL(repo string) string {
	repo = strings.TrimSpace(repo)
	switch {
	case strings.Contains(repo, "://"), strings.HasPrefix(repo, "git@"),
		strings.HasPrefix(repo, "/"), strings.HasPrefix(repo, "."):
		return repo
	}
	return "https://github.com/" + strings.TrimSuffix(repo, ".git") + ".git"
}

func (d *GitHub) auth() transport.AuthMethod {
	if d.cfg.Token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: d.cfg.Token}
}

func (d *GitHub) Deploy(ctx context.Context, t Target) error {
	files, err := collect(t.Dir)
	if err != nil {
		return err
	}
	url := RepoURL(t.Option("repo", d.cfg.Repo))
	branch := t.Option("branch", d.cfg.Branch)
	if branch == "" {
		branch = DefaultPagesBranch
	}
	ref := plumbing.NewBranchReferenceName(branch)

	repo, wt, err := openBranch(ctx, url, ref, d.auth())
	if err != nil {
		return fmt.Errorf("github checkout %s@%s: %w", url, branch, err)
	}
	if err := fillTree(wt, files, t.Domain); err != nil {
		return err
	}

	w, err := repo.Worktree()
	if err != nil {
		return err
	}
	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	st, err := w.Status()
	if err != nil {
		return err
	}
	if st.IsClean() {
		zap.S().Infow("pages branch already current", "directory", t.DirectoryID, "branch", branch)
		return nil
	}

	name, email := d.cfg.AuthorName, d.cfg.AuthorEmail
	if name == "" {
		name = "dirsite"
	}
	if email == "" {
		email = "dirsite@users.noreply.github.com"
	}
	msg := fmt.Sprintf("Deploy %s (%d files)", t.DirectoryID, len(files))
	if _, err := w.Commit(msg, &git.CommitOptions{
		All:    true,
		Author: &object.Signature{Name: name, Email: email, When: time.Now()},
	}); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}

	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: "origin",
		Auth:       d.auth(),
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(ref + ":" + ref)},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

// openBranch clones ref, or initialises an orphan branch when the remote is
// empty or lacks ref.
func openBranch(ctx context.Context, url string, ref plumbing.ReferenceName, auth transport.AuthMethod) (*git.Repository, billy.Filesystem, error) {
	wt := memfs.New()
	repo, err := git.CloneContext(ctx, memory.NewStorage(), wt, &git.CloneOptions{
		URL:           url,
		Auth:          auth,
		ReferenceName: ref,
		SingleBranch:  true,
		Depth:         1,
	})
	if err == nil {
		return repo, wt, nil
	}
	if !errors.Is(err, transport.ErrEmptyRemoteRepository) &&
		!errors.Is(err, plumbing.ErrReferenceNotFound) &&
		!errors.Is(err, git.NoMatchingRefSpecError{}) {
		return nil, nil, err
	}

	zap.S().Infow("starting orphan pages branch", "repo", url, "branch", ref.Short())
	wt = memfs.New()
	repo, err = git.Init(memory.NewStorage(), wt)
	if err != nil {
		return nil, nil, err
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{url}}); err != nil {
		return nil, nil, err
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, ref)); err != nil {
		return nil, nil, err
	}
	return repo, wt, nil
}

// fillTree replaces the worktree content with files, plus .nojekyll (so
// _astro/ is served) and CNAME for a custom domain.
func fillTree(wt billy.Filesystem, files []file, domain string) error {
	entries, err := wt.ReadDir("/")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := util.RemoveAll(wt, e.Name()); err != nil {
			return err
		}
	}

	hasCNAME := false
	for _, f := range files {
		b, err := os.ReadFile(f.Abs)
		if err != nil {
			return err
		}
		if err := util.WriteFile(wt, f.Rel, b, 0o644); err != nil {
			return fmt.Errorf("stage %s: %w", f.Rel, err)
		}
		hasCNAME = hasCNAME || f.Rel == "CNAME"
	}
	if err := util.WriteFile(wt, ".nojekyll", nil, 0o644); err != nil {
		return err
	}
	if domain != "" && !hasCNAME {
		return util.WriteFile(wt, "CNAME", []byte(domain+"\n"), 0o644)
	}
	return nil
}
