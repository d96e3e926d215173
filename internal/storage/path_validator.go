package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"storefront/pkg/apierror"
)

// PathValidator maps client paths such as "/image/1700000000000-042.png"
// onto the upload root. A client path never climbs out of the root, never
// names a hidden entry, and never passes through a symlink leading elsewhere.
type PathValidator struct {
	root string
}

func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	return &PathValidator{root: abs}, nil
}

func (v *PathValidator) RootAbs() string {
	return v.root
}

func (v *PathValidator) ResolvePath(clientPath string) (string, error) {
	segments, err := splitClientPath(clientPath)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return v.root, nil
	}

	resolved := filepath.Join(append([]string{v.root}, segments...)...)
	if !isWithinRoot(v.root, resolved) {
		return "", outsideRoot(clientPath)
	}

	if err := v.checkSymlinks(resolved, clientPath); err != nil {
		return "", err
	}

	return resolved, nil
}

func splitClientPath(clientPath string) ([]string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(clientPath), `\`, "/")
	if strings.IndexFunc(normalized, unicode.IsControl) >= 0 {
		return nil, apierror.BadRequest("path contains invalid characters", clientPath)
	}

	var segments []string
	for _, segment := range strings.Split(normalized, "/") {
		switch {
		case segment == "" || segment == ".":
			continue
		case segment == "..":
			return nil, apierror.New(apierror.CodeForbidden, "path traversal attempt detected", clientPath, http.StatusForbidden)
		case strings.HasPrefix(segment, "."):
			return nil, apierror.New(apierror.CodeForbidden, "hidden entries are not accessible", clientPath, http.StatusForbidden)
		}
		segments = append(segments, segment)
	}

	return segments, nil
}

// checkSymlinks resolves the deepest existing ancestor of target and requires
// it to stay under the real root.
func (v *PathValidator) checkSymlinks(target string, clientPath string) error {
	realRoot, err := filepath.EvalSymlinks(v.root)
	if err != nil {
		// Nothing below a missing root can exist yet.
		return nil
	}

	existing := target
	for {
		evaluated, err := filepath.EvalSymlinks(existing)
		if err == nil {
			if !isWithinRoot(realRoot, evaluated) {
				return outsideRoot(clientPath)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("resolve %q: %w", clientPath, err)
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return nil
		}
		existing = parent
	}
}

func outsideRoot(clientPath string) error {
	return apierror.New(apierror.CodeForbidden, "resolved path is outside storage root", clientPath, http.StatusForbidden)
}

func isWithinRoot(root string, candidate string) bool {
	if candidate == root {
		return true
	}
	return strings.HasPrefix(candidate, root+string(filepath.Separator))
}
