// Package filter provides file discovery from glob patterns.
// Patterns use doublestar syntax (`**`, `{a,b}` alternatives) and are
// expanded relative to the project root. Matches from every pattern are
// merged, de-duplicated, filtered and returned in lexical order.
package filter

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"reroot/internal/config"
	"reroot/internal/errors"
)

// FileInfo contains essential metadata about a discovered path. Directories
// matched by a pattern are reported with IsDir set so the caller can skip
// them with a notice.
type FileInfo struct {
	Path    string
	Size    int64
	IsDir   bool
	ModTime int64
}

// FileFilter decides whether a matched path is kept. rel is the
// slash-separated path relative to the root, or the cleaned absolute path
// when the match lies outside it.
type FileFilter func(rel string, abs string) (bool, error)

// FileDiscovery expands the configured patterns against the root directory.
type FileDiscovery struct {
	config  *config.Config
	filters []FileFilter
}

// NewFileDiscovery creates a FileDiscovery with filters built from cfg.
func NewFileDiscovery(cfg *config.Config) *FileDiscovery {
	return &FileDiscovery{
		config:  cfg,
		filters: buildFilters(cfg),
	}
}

// Discover returns every path matched by at least one pattern. It returns a
// NoMatchError when nothing matches and a ConfigError for malformed patterns.
// Patterns are expanded concurrently; the merged result does not depend on
// which expansion finishes first.
func (fd *FileDiscovery) Discover(ctx context.Context) ([]FileInfo, error) {
	expanded := make([][]string, len(fd.config.Patterns))

	g, gctx := errgroup.WithContext(ctx)
	for i, pattern := range fd.config.Patterns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matches, err := fd.expand(pattern)
			expanded[i] = matches
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var files []FileInfo
	for _, matches := range expanded {
		for _, abs := range matches {
			if _, dup := seen[abs]; dup {
				continue
			}
			seen[abs] = struct{}{}

			keep, err := fd.shouldKeep(abs)
			if err != nil {
				return nil, err
			}
			if keep {
				files = append(files, statFileInfo(abs))
			}
		}
	}

	if len(files) == 0 {
		return nil, errors.NewNoMatchError(fd.config.RootDir, fd.config.Patterns)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// expand returns the absolute paths matched by one pattern.
func (fd *FileDiscovery) expand(pattern string) ([]string, error) {
	slashed := filepath.ToSlash(pattern)
	if !doublestar.ValidatePattern(slashed) {
		return nil, errors.NewConfigError("invalid glob pattern: "+pattern, doublestar.ErrBadPattern)
	}

	local := strings.TrimPrefix(slashed, "./")
	if !filepath.IsAbs(pattern) && fs.ValidPath(local) {
		matches, err := doublestar.Glob(os.DirFS(fd.config.RootDir), local)
		if err != nil {
			return nil, errors.NewConfigError("invalid glob pattern: "+pattern, err)
		}
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, filepath.Join(fd.config.RootDir, filepath.FromSlash(m)))
		}
		return out, nil
	}

	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(fd.config.RootDir, pattern)
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, errors.NewConfigError("invalid glob pattern: "+pattern, err)
	}
	for i, m := range matches {
		matches[i] = filepath.Clean(m)
	}
	return matches, nil
}

func (fd *FileDiscovery) shouldKeep(abs string) (bool, error) {
	rel := fd.relative(abs)
	for _, filter := range fd.filters {
		keep, err := filter(rel, abs)
		if err != nil {
			return false, err
		}
		if !keep {
			return false, nil
		}
	}
	return true, nil
}

func (fd *FileDiscovery) relative(abs string) string {
	rel, err := filepath.Rel(fd.config.RootDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func statFileInfo(abs string) FileInfo {
	info := FileInfo{Path: abs}
	st, err := os.Stat(abs)
	if err != nil {
		return info
	}
	info.Size = st.Size()
	info.IsDir = st.IsDir()
	info.ModTime = st.ModTime().Unix()
	return info
}

func buildFilters(cfg *config.Config) []FileFilter {
	var filters []FileFilter

	if len(cfg.ExcludeDir) > 0 {
		filters = append(filters, excludeDirFilter(cfg.ExcludeDir))
	}

	if len(cfg.Exclude) > 0 {
		filters = append(filters, excludeFilter(cfg.Exclude))
	}

	filters = append(filters, backupFileFilter())

	return filters
}

// excludeDirFilter drops any path that has an excluded directory among its
// components. Entries are directory names or single-segment globs.
func excludeDirFilter(dirs []string) FileFilter {
	return func(rel string, _ string) (bool, error) {
		for _, segment := range strings.Split(rel, "/") {
			for _, dir := range dirs {
				if segment == dir {
					return false, nil
				}
				matched, err := doublestar.Match(dir, segment)
				if err != nil {
					return false, errors.NewConfigError("invalid exclude-dir pattern: "+dir, err)
				}
				if matched {
					return false, nil
				}
			}
		}
		return true, nil
	}
}

// excludeFilter drops paths whose root-relative path or base name matches
// one of the patterns.
func excludeFilter(patterns []string) FileFilter {
	return func(rel string, _ string) (bool, error) {
		base := path.Base(rel)
		for _, pattern := range patterns {
			pattern = filepath.ToSlash(pattern)
			matched, err := doublestar.Match(pattern, rel)
			if err != nil {
				return false, errors.NewConfigError("invalid exclude pattern: "+pattern, err)
			}
			if matched {
				return false, nil
			}

			matched, err = doublestar.Match(pattern, base)
			if err != nil {
				return false, errors.NewConfigError("invalid exclude pattern: "+pattern, err)
			}
			if matched {
				return false, nil
			}
		}
		return true, nil
	}
}

// backupFileFilter keeps backups written by --backup out of broad patterns.
func backupFileFilter() FileFilter {
	return func(rel string, _ string) (bool, error) {
		return !strings.HasSuffix(rel, ".bak"), nil
	}
}
