// Package mirror publishes local snapshot files to a GitHub repository.
//
// Publishing is create-or-update: an existing remote file is updated using
// its current blob SHA, a missing one is created. Repeated publishes of the
// same local file therefore converge on a single remote object at a stable
// path, though every successful update still produces a new commit even
// when the content is byte-identical.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

var (
	// ErrNotFound reports that the remote file does not exist. It is
	// distinct from transport or API failures.
	ErrNotFound = errors.New("remote file not found")

	// ErrConflict reports that the remote file changed between the fetch
	// and the update. The caller should refetch and retry; the update is
	// not applied.
	ErrConflict = errors.New("remote file changed concurrently")
)

// PublishResult describes a successful publish.
type PublishResult struct {
	// Path is the file's path inside the repository.
	Path string
	// HTMLURL is the browsable URL of the published file.
	HTMLURL string
	// Updated is true when an existing file was updated, false when a new
	// file was created.
	Updated bool
}

// Uploader publishes files into one GitHub repository.
type Uploader struct {
	client *github.Client
	owner  string
	repo   string
}

// NewUploader builds an uploader for repo ("owner/name") authenticated with
// the given token.
func NewUploader(token, repo string) (*Uploader, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(context.Background(), ts))
	return NewUploaderWithClient(client, repo)
}

// NewUploaderWithClient builds an uploader around an existing client,
// mainly for tests.
func NewUploaderWithClient(client *github.Client, repo string) (*Uploader, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("repo %q must be in owner/name form", repo)
	}
	return &Uploader{client: client, owner: owner, repo: name}, nil
}

// remotePath joins the upload directory with the file name.
func remotePath(remoteDir, filename string) string {
	if remoteDir == "" {
		return filename
	}
	return path.Join(remoteDir, filename)
}

// Upload publishes the local file at localPath to branch under remoteDir.
//
// The remote file is fetched first: if present it is updated against its
// current SHA, otherwise it is created. A concurrent SHA change surfaces as
// ErrConflict; any other failure is returned as-is and the caller decides
// whether to retry.
func (u *Uploader) Upload(ctx context.Context, localPath, branch, remoteDir string) (*PublishResult, error) {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", localPath, err)
	}

	rp := remotePath(remoteDir, filepath.Base(localPath))

	existing, _, resp, err := u.client.Repositories.GetContents(ctx, u.owner, u.repo, rp,
		&github.RepositoryContentGetOptions{Ref: branch})

	switch {
	case err == nil && existing != nil:
		opts := &github.RepositoryContentFileOptions{
			Message: github.String(fmt.Sprintf("Update %s", rp)),
			Content: content,
			SHA:     existing.SHA,
			Branch:  github.String(branch),
		}
		updated, upResp, err := u.client.Repositories.UpdateFile(ctx, u.owner, u.repo, rp, opts)
		if err != nil {
			if upResp != nil && upResp.StatusCode == http.StatusConflict {
				return nil, fmt.Errorf("update %s: %w", rp, ErrConflict)
			}
			return nil, fmt.Errorf("update %s: %w", rp, err)
		}
		return &PublishResult{
			Path:    rp,
			HTMLURL: updated.Content.GetHTMLURL(),
			Updated: true,
		}, nil

	case isNotFound(resp, err):
		opts := &github.RepositoryContentFileOptions{
			Message: github.String(fmt.Sprintf("Add %s", rp)),
			Content: content,
			Branch:  github.String(branch),
		}
		created, _, err := u.client.Repositories.CreateFile(ctx, u.owner, u.repo, rp, opts)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", rp, err)
		}
		return &PublishResult{
			Path:    rp,
			HTMLURL: created.Content.GetHTMLURL(),
			Updated: false,
		}, nil

	case err == nil:
		// GetContents succeeded but returned directory content.
		return nil, fmt.Errorf("remote path %s is a directory", rp)

	default:
		return nil, fmt.Errorf("fetch %s: %w", rp, err)
	}
}

// FileURL resolves the browsable URL of an already-published file.
// A missing file returns ErrNotFound; other failures are returned as-is.
func (u *Uploader) FileURL(ctx context.Context, filename, remoteDir string) (string, error) {
	rp := remotePath(remoteDir, filename)

	content, _, resp, err := u.client.Repositories.GetContents(ctx, u.owner, u.repo, rp, nil)
	if err != nil {
		if isNotFound(resp, err) {
			return "", fmt.Errorf("%s: %w", rp, ErrNotFound)
		}
		return "", fmt.Errorf("fetch %s: %w", rp, err)
	}
	if content == nil {
		return "", fmt.Errorf("%s is not a file", rp)
	}

	return content.GetHTMLURL(), nil
}

// isNotFound reports whether err is a GitHub 404, as opposed to any other
// fetch failure.
func isNotFound(resp *github.Response, err error) bool {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return true
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
