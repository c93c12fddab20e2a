// Package vault reads notes and their attachments from an Obsidian-style
// vault directory.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/xaenox/notegram/internal/models"
	"go.uber.org/zap"
)

// Vault gives read access to the files below a root directory.
type Vault struct {
	root   string
	logger *zap.Logger
}

// New opens the vault rooted at root.
func New(root string, logger *zap.Logger) (*Vault, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path is not a directory: %s", absPath)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Vault{root: absPath, logger: logger}, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string {
	return v.root
}

// ResolvePath maps a vault-relative path to an absolute one, rejecting paths
// that escape the vault.
func (v *Vault) ResolvePath(relativePath string) (string, error) {
	normalizedPath := strings.TrimPrefix(strings.TrimSpace(relativePath), "/")

	absPath, err := filepath.Abs(filepath.Join(v.root, filepath.FromSlash(normalizedPath)))
	if err != nil {
		return "", err
	}

	relPath, err := filepath.Rel(v.root, absPath)
	if err != nil {
		return "", err
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal not allowed: %s", relativePath)
	}

	return absPath, nil
}

// ReadNote reads a note, strips its frontmatter and collects its embeds.
func (v *Vault) ReadNote(notePath string) (models.Note, error) {
	content, err := v.read(notePath)
	if err != nil {
		return models.Note{}, err
	}

	frontmatter, body := splitFrontmatter(strings.ReplaceAll(string(content), "\r\n", "\n"))
	text, embeds := parseBody(body)

	v.logger.Debug("Read note",
		zap.String("path", notePath),
		zap.Int("embeds", len(embeds)))

	return models.Note{
		Path:        filepath.ToSlash(strings.TrimPrefix(strings.TrimSpace(notePath), "/")),
		RawText:     text,
		Frontmatter: frontmatter,
		Tags:        frontmatterTags(frontmatter),
		Embeds:      embeds,
	}, nil
}

// ReadBinary returns the bytes of a vault file.
func (v *Vault) ReadBinary(filePath string) ([]byte, error) {
	return v.read(filePath)
}

func (v *Vault) read(relativePath string) ([]byte, error) {
	fullPath, err := v.ResolvePath(relativePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err == nil && info.IsDir() {
		return nil, fmt.Errorf("cannot read directory as file: %s", relativePath)
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", relativePath)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("permission denied: %s", relativePath)
		}
		return nil, fmt.Errorf("failed to read file: %s - %w", relativePath, err)
	}

	return content, nil
}

// Resolve finds the file an embed points at. The target is looked up next to
// the note, then from the vault root, then by name anywhere in the vault.
// Targets without an extension refer to notes.
func (v *Vault) Resolve(linkTarget, contextPath string) (models.ResolvedFile, bool) {
	target := linkTarget
	if i := strings.IndexAny(target, "|#"); i >= 0 {
		target = target[:i]
	}
	target = strings.TrimSpace(target)
	if decoded, err := url.PathUnescape(target); err == nil {
		target = decoded
	}
	target = strings.TrimPrefix(filepath.ToSlash(target), "./")
	if target == "" {
		return models.ResolvedFile{}, false
	}
	if path.Ext(target) == "" {
		target += ".md"
	}

	candidates := []string{path.Join(path.Dir(contextPath), target), target}
	for _, candidate := range candidates {
		if v.isFile(candidate) {
			return v.resolved(candidate), true
		}
	}

	if found, ok := v.findByName(target); ok {
		return v.resolved(found), true
	}

	return models.ResolvedFile{}, false
}

func (v *Vault) isFile(relativePath string) bool {
	fullPath, err := v.ResolvePath(relativePath)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}

// findByName walks the vault in lexical order and returns the first file
// whose path ends with target. Hidden directories are skipped.
func (v *Vault) findByName(target string) (string, bool) {
	var found string
	suffix := "/" + strings.TrimPrefix(target, "/")

	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != v.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if strings.EqualFold(rel, target) || hasSuffixFold("/"+rel, suffix) {
			found = rel
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		v.logger.Warn("Vault walk failed", zap.Error(err))
	}

	return found, found != ""
}

func (v *Vault) resolved(relativePath string) models.ResolvedFile {
	clean := path.Clean(strings.TrimPrefix(relativePath, "/"))
	return models.ResolvedFile{
		Name:      path.Base(clean),
		Extension: strings.ToLower(strings.TrimPrefix(path.Ext(clean), ".")),
		Path:      clean,
	}
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
