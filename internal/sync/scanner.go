package sync

import (
	"bufio"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/translationdb/dbsync/internal/utils"
)

// IgnoreFileName is an optional per-root ignore file with gitignore syntax,
// merged on top of the default exclude rules.
const IgnoreFileName = ".dbsyncignore"

var defaultIgnoreLines = []string{
	// sync bookkeeping
	IgnoreFileName,
	"*.manifest.json",
	"*.lock",
	"*.tmp",
	// python
	"__pycache__/",
	".pytest_cache/",
	".venv/",
	"venv/",
	// general excludes
	".git/",
	"node_modules/",
	".env",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
}

// compiled artifacts and native binaries never belong in the bucket
var excludedExtensions = mapset.NewSet(".pyc", ".pyo", ".pyd", ".so", ".o", ".a")

// Scanner walks a sync root and produces the run's upload candidates with
// prefix-joined, forward-slash remote keys.
type Scanner struct {
	rootDir string
	prefix  string
	ignore  *gitignore.GitIgnore
}

func NewScanner(rootDir string, prefix string) *Scanner {
	s := &Scanner{
		rootDir: rootDir,
		prefix:  prefix,
	}
	s.loadIgnoreRules()
	return s
}

func (s *Scanner) loadIgnoreRules() {
	ignoreLines := defaultIgnoreLines

	ignorePath := filepath.Join(s.rootDir, IgnoreFileName)
	if utils.FileExists(ignorePath) {
		rules := 0
		file, err := os.Open(ignorePath)
		if err != nil {
			slog.Warn("Failed to open ignore file", "path", ignorePath, "error", err)
		} else {
			defer file.Close()
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				line := scanner.Text()
				if line != "" {
					ignoreLines = append(ignoreLines, line)
					rules++
				}
			}
			if err := scanner.Err(); err != nil {
				slog.Warn("Error reading ignore file", "path", ignorePath, "error", err)
			} else {
				slog.Info("Loaded ignore file", "path", ignorePath, "rules", rules)
			}
		}
	}

	s.ignore = gitignore.CompileIgnoreLines(ignoreLines...)
}

// Collect walks the root and returns the upload candidates plus the number of
// excluded files. Unreadable files are skipped with a warning; they must not
// abort the whole collection.
func (s *Scanner) Collect() ([]*UploadCandidate, int, error) {
	var candidates []*UploadCandidate
	skipped := 0

	err := filepath.WalkDir(s.rootDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk error: %w", walkErr)
		}

		relPath, err := filepath.Rel(s.rootDir, p)
		if err != nil {
			return fmt.Errorf("walk rel path: %w", err)
		}
		relPath = utils.NormPath(relPath)

		if d.IsDir() {
			if relPath != "." && s.ignore.MatchesPath(relPath+"/") {
				skipped++
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignore.MatchesPath(relPath) || excludedExtensions.Contains(path.Ext(relPath)) {
			skipped++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "path", p, "error", err)
			return nil // skip this file
		}

		candidates = append(candidates, &UploadCandidate{
			LocalPath: p,
			Key:       path.Join(s.prefix, relPath),
			Size:      info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("local scan failed: %w", err)
	}

	return candidates, skipped, nil
}
