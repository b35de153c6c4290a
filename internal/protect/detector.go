package protect

import (
	"path/filepath"
	"strings"
	"sync"
)

// Detector checks if paths fall in protected areas. A path is protected
// when it matches a glob pattern, contains a keyword, has a protected
// extension or, once made workspace-relative, escapes the workspace.
type Detector struct {
	mu        sync.RWMutex
	patterns  []string
	keywords  []string
	fileTypes []string
}

// New creates a detector with the default rules.
func New() *Detector {
	return &Detector{
		patterns:  append([]string{}, DefaultPatterns...),
		keywords:  append([]string{}, DefaultKeywords...),
		fileTypes: append([]string{}, DefaultFileTypes...),
	}
}

// Empty creates a detector with no rules.
func Empty() *Detector {
	return &Detector{}
}

// IsProtected checks if a path matches any protected area criteria.
func (d *Detector) IsProtected(path string) bool {
	protected, _ := d.IsProtectedWithReason(path)
	return protected
}

// IsProtectedWithReason checks if a path is protected and returns the reason.
func (d *Detector) IsProtectedWithReason(path string) (bool, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	normalized := normalize(path)
	if normalized == ".." || strings.HasPrefix(normalized, "../") {
		return true, "Path is outside the workspace"
	}
	lower := strings.ToLower(normalized)

	for _, pattern := range d.patterns {
		if Match(pattern, normalized) {
			return true, "Path matches protected pattern: " + pattern
		}
	}

	for _, keyword := range d.keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true, "Path contains protected keyword: " + keyword
		}
	}

	ext := strings.ToLower(extension(normalized))
	for _, protectedExt := range d.fileTypes {
		if ext != "" && ext == strings.ToLower(protectedExt) {
			return true, "File type is protected: " + protectedExt
		}
	}

	return false, ""
}

// CheckInWorkspace resolves path against workspace and checks the
// workspace-relative form, so the workspace's own location never matches.
func (d *Detector) CheckInWorkspace(workspace, path string) (bool, string) {
	return d.IsProtectedWithReason(Relative(workspace, path))
}

// AddPattern adds a glob pattern to the protected patterns list.
func (d *Detector) AddPattern(pattern string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patterns = append(d.patterns, pattern)
}

// AddKeyword adds a keyword to the protected keywords list.
func (d *Detector) AddKeyword(keyword string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keywords = append(d.keywords, keyword)
}

// AddFileType adds a file extension to the protected file types list.
func (d *Detector) AddFileType(ext string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	d.fileTypes = append(d.fileTypes, ext)
}

// Relative returns path relative to workspace. Relative paths are taken
// as workspace-relative already.
func Relative(workspace, path string) string {
	if !filepath.IsAbs(path) || workspace == "" {
		return path
	}
	rel, err := filepath.Rel(workspace, path)
	if err != nil {
		return path
	}
	return rel
}

func normalize(path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	p = filepath.ToSlash(filepath.Clean(filepath.FromSlash(p)))
	return strings.TrimPrefix(p, "./")
}

// extension handles dotfiles such as ".env", which filepath.Ext treats as
// having the whole name for an extension.
func extension(path string) string {
	base := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		base = path[i+1:]
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		return base[i:]
	}
	return ""
}
