package fetch

import (
	"context"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"repolens/internal/catalog"
	"repolens/internal/safeio"
	t "repolens/internal/types"
)

// Local reads a repository straight from the filesystem. It exists for tests
// and for analyzing checkouts without touching the GitHub API; the repoID is
// ignored beyond validation and the root directory decides everything.
type Local struct {
	Root            string
	MaxContentBytes int64
}

func NewLocal(root string, maxContentBytes int64) *Local {
	if maxContentBytes <= 0 {
		maxContentBytes = 200 * 1024
	}
	return &Local{Root: root, MaxContentBytes: maxContentBytes}
}

func (l *Local) Meta(ctx context.Context, repoID string) (t.RepoMeta, error) {
	fsys, err := safeio.NewSafeFS(l.Root)
	if err != nil {
		return t.RepoMeta{}, ErrNotFound
	}
	name := filepath.Base(fsys.Root())
	id := strings.TrimSpace(repoID)
	owner := "local"
	if norm, err := NormalizeRepoID(id); err == nil {
		parts := strings.SplitN(norm, "/", 2)
		owner, name = parts[0], parts[1]
	}
	return t.RepoMeta{
		Owner:         owner,
		Name:          name,
		FullName:      owner + "/" + name,
		DefaultBranch: "main",
	}, nil
}

// Catalog walks the root and returns every regular file outside of VCS and
// dependency directories. Source files under the size cap carry content.
// All reads go through a root-locked filesystem so a symlink in the
// checkout cannot pull in files from outside it.
func (l *Local) Catalog(ctx context.Context, repoID, ref string) ([]t.FileRecord, error) {
	fsys, err := safeio.NewSafeFS(l.Root)
	if err != nil {
		return nil, ErrNotFound
	}
	root := fsys.Root()

	var records []t.FileRecord
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if _, ok := skipDirs[filepath.Base(path)]; ok {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}

		size := int64(0)
		if fi, e := fsys.SafeStat(rel); e == nil {
			size = fi.Size()
		}
		slashRel := filepath.ToSlash(rel)
		rec := t.FileRecord{Path: slashRel, Size: size}
		if lang := catalog.LanguageForPath(slashRel); catalog.IsSourceLanguage(lang) && size <= l.MaxContentBytes {
			if b, e := fsys.SafeReadFile(rel); e == nil {
				rec.Content = string(b)
			}
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	catalog.Annotate(records)
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}
