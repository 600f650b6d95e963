package git

import (
	"fmt"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	giturls "github.com/whilp/git-urls"

	"github.com/mslinn/benchledger/pkg/ledger"
)

// HeadCommit reads the commit HEAD points to in the repository containing dir.
// repoURL, when set, is used to build the commit's web URL.
func HeadCommit(dir, repoURL string) (ledger.CommitInfo, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ledger.CommitInfo{}, fmt.Errorf("failed to open repository: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return ledger.CommitInfo{}, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return ledger.CommitInfo{}, fmt.Errorf("failed to read commit %s: %w", head.Hash(), err)
	}

	return commitInfo(commit, repoURL), nil
}

func commitInfo(c *object.Commit, repoURL string) ledger.CommitInfo {
	id := c.Hash.String()
	info := ledger.CommitInfo{
		Author:    person(c.Author),
		Committer: person(c.Committer),
		Distinct:  true,
		ID:        id,
		Message:   strings.TrimRight(c.Message, "\n"),
		Timestamp: c.Committer.When.Format(time.RFC3339),
		TreeID:    c.TreeHash.String(),
	}
	if repoURL != "" {
		info.URL = strings.TrimSuffix(repoURL, "/") + "/commit/" + id
	}
	return info
}

func person(sig object.Signature) ledger.Person {
	return ledger.Person{Name: sig.Name, Email: sig.Email}
}

// RemoteURL returns the web URL (https://host/owner/repo) of a remote of the
// repository containing dir
func RemoteURL(dir, remote string) (string, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	r, err := repo.Remote(remote)
	if err != nil {
		return "", fmt.Errorf("failed to find remote %s: %w", remote, err)
	}
	urls := r.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("remote %s has no URL", remote)
	}
	return WebURL(urls[0])
}

// WebURL normalises a clone URL (ssh, scp-like, git or https) to
// https://host/owner/repo
func WebURL(cloneURL string) (string, error) {
	u, err := giturls.Parse(cloneURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse %q: %w", cloneURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%q has no host", cloneURL)
	}

	path := strings.Trim(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	return "https://" + u.Hostname() + "/" + path, nil
}
