package fetch

import (
	"context"
	"errors"
	"regexp"
	"strings"

	t "repolens/internal/types"
)

// Typed provider failures. The pipeline maps all of these to terminal run
// errors; everything else from a provider is treated as a generic fetch
// failure.
var (
	ErrNotFound      = errors.New("fetch: repository not found")
	ErrRateLimited   = errors.New("fetch: rate limited by provider")
	ErrUnauthorized  = errors.New("fetch: unauthorized")
	ErrBadIdentifier = errors.New("fetch: malformed repository identifier")
)

// Provider supplies repository metadata and the file catalog for one
// repository identifier. Implementations must return the sentinel errors
// above for the corresponding provider responses.
type Provider interface {
	Meta(ctx context.Context, repoID string) (t.RepoMeta, error)
	Catalog(ctx context.Context, repoID, ref string) ([]t.FileRecord, error)
}

var repoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// NormalizeRepoID reduces the accepted identifier forms to "owner/repo".
// Accepted inputs: "owner/repo", "github.com/owner/repo" and the https/ssh
// URL forms, with an optional trailing ".git". Anything else fails with
// ErrBadIdentifier.
func NormalizeRepoID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrBadIdentifier
	}
	id = strings.TrimPrefix(id, "https://")
	id = strings.TrimPrefix(id, "http://")
	id = strings.TrimPrefix(id, "git@github.com:")
	id = strings.TrimPrefix(id, "github.com/")
	id = strings.TrimSuffix(id, ".git")
	id = strings.Trim(id, "/")
	if !repoIDPattern.MatchString(id) {
		return "", ErrBadIdentifier
	}
	return id, nil
}
