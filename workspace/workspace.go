// Package workspace manages per-agent filesystem roots. Every file operation
// is containment-checked: a canonicalized path must stay inside the acting
// agent's root, symlink escapes included.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/BradleyMatera/ShellCompany-sub002/directive"
)

// defaultExcludes are glob patterns skipped by workspace scans.
var defaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/.*",
}

// Manager owns the workspace base directory and hands out per-agent roots.
type Manager struct {
	base     string
	excludes []string
}

// NewManager creates a Manager rooted at base, creating the directory if
// needed.
func NewManager(base string) (*Manager, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace base: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace base: %w", err)
	}
	// Canonicalize so containment checks survive symlinked temp dirs.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("canonicalize workspace base: %w", err)
	}
	return &Manager{base: resolved, excludes: defaultExcludes}, nil
}

// Base returns the canonical base directory.
func (m *Manager) Base() string {
	return m.base
}

// ForAgent returns the workspace for an agent, creating its root if needed.
func (m *Manager) ForAgent(agentName string) (*Workspace, error) {
	name := strings.ToLower(strings.TrimSpace(agentName))
	if name == "" || strings.ContainsAny(name, "/\\.") {
		return nil, directive.Errorf(directive.KindInvalidInput, "invalid agent name %q", agentName)
	}
	root := filepath.Join(m.base, name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create agent workspace: %w", err)
	}
	return &Workspace{agent: name, root: root, excludes: m.excludes}, nil
}

// RootFor returns the canonical workspace root for an agent without
// creating it. The lineage service uses this for containment checks.
func (m *Manager) RootFor(agentName string) string {
	return filepath.Join(m.base, strings.ToLower(strings.TrimSpace(agentName)))
}

// Workspace is one agent's filesystem root.
type Workspace struct {
	agent    string
	root     string
	excludes []string
}

// Agent returns the owning agent name.
func (w *Workspace) Agent() string {
	return w.agent
}

// Root returns the canonical workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve converts a relative path into a contained absolute path. It
// rejects absolute inputs, traversal, and symlink escapes.
func (w *Workspace) Resolve(relPath string) (string, error) {
	if relPath == "" {
		return "", directive.Errorf(directive.KindWorkspaceViolation, "empty path")
	}
	if filepath.IsAbs(relPath) {
		return "", directive.Errorf(directive.KindWorkspaceViolation, "absolute path %q not allowed", relPath)
	}
	abs := filepath.Join(w.root, relPath)
	if !w.Contains(abs) {
		return "", directive.Errorf(directive.KindWorkspaceViolation, "path %q escapes workspace of agent %s", relPath, w.agent)
	}
	return abs, nil
}

// Contains reports whether the canonicalized absolute path lies strictly
// inside the workspace root. Symlinks are resolved on the deepest existing
// ancestor, so links pointing outside the root are caught before use.
func (w *Workspace) Contains(absPath string) bool {
	cleaned := filepath.Clean(absPath)
	resolved, err := resolveExisting(cleaned)
	if err != nil {
		return false
	}
	if resolved == w.root {
		return false // the root itself is not a valid file target
	}
	return strings.HasPrefix(resolved, w.root+string(filepath.Separator))
}

// resolveExisting canonicalizes a path whose tail may not exist yet: symlinks
// are evaluated on the deepest existing ancestor and the remainder appended.
func resolveExisting(path string) (string, error) {
	remainder := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", err
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

// WriteFile writes bytes to a contained relative path, creating parent
// directories. Returns the canonical absolute path.
func (w *Workspace) WriteFile(relPath string, data []byte) (string, error) {
	abs, err := w.Resolve(relPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return abs, nil
}

// ReadFile reads a contained relative path.
func (w *Workspace) ReadFile(relPath string) ([]byte, error) {
	abs, err := w.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// FileState describes one file at snapshot time.
type FileState struct {
	// RelPath is the path relative to the workspace root.
	RelPath string

	// AbsPath is the canonical absolute path.
	AbsPath string

	// Hash is the SHA-256 hex digest of the content.
	Hash string

	// Size is the content size in bytes.
	Size int64

	// ModTime is the filesystem modification time.
	ModTime time.Time
}

// Snapshot captures the hash and size of every file under the root,
// excluding the default scan excludes.
func (w *Workspace) Snapshot() (map[string]FileState, error) {
	out := make(map[string]FileState)
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel != "." && w.excluded(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if w.excluded(rel) {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		hash, hashErr := HashFile(path)
		if hashErr != nil {
			return hashErr
		}
		out[rel] = FileState{
			RelPath: rel,
			AbsPath: path,
			Hash:    hash,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot workspace %s: %w", w.agent, err)
	}
	return out, nil
}

// excluded reports whether a relative path matches a scan exclude pattern.
func (w *Workspace) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Changed compares a prior snapshot against the current workspace state and
// returns files that were created or whose content changed, sorted by path.
func (w *Workspace) Changed(before map[string]FileState) ([]FileState, error) {
	after, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	var changed []FileState
	for rel, state := range after {
		prev, existed := before[rel]
		if !existed || prev.Hash != state.Hash {
			changed = append(changed, state)
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].RelPath < changed[j].RelPath })
	return changed, nil
}

// HashFile computes the SHA-256 hex digest of a file's content.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// HashBytes computes the SHA-256 hex digest of a byte slice.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
