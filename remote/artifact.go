package remote

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/bmeg/datacheck/paths"
)

// Artifact is one downloadable object: an archive or a standalone file.
// It is passed by value and never modified after construction.
type Artifact struct {
	Filename string
	URL      string
	Checksum string
}

func NewArtifact(filename, url, checksum string) Artifact {
	return Artifact{Filename: filename, URL: url, Checksum: checksum}
}

// LocalPath is where the artifact is stored under root, or under
// paths.DefaultHome when root is empty.
func (a Artifact) LocalPath(root string) string {
	return paths.New(root).Join(a.Filename)
}

func (a Artifact) String() string {
	return fmt.Sprintf("%s (%s)", a.Filename, a.URL)
}

// RenderURL expands handlebars expressions such as {{mirror}} in an
// artifact URL from vars. URLs without expressions are returned as is.
func RenderURL(tmpl string, vars map[string]string) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}
	// values are URL fragments, not HTML, so they are passed unescaped
	ctx := map[string]any{}
	for k, v := range vars {
		ctx[k] = raymond.SafeString(v)
	}
	out, err := raymond.Render(tmpl, ctx)
	if err != nil {
		return "", fmt.Errorf("rendering url %q: %w", tmpl, err)
	}
	return out, nil
}

// WithURLVars returns a copy of a with its URL rendered from vars.
func (a Artifact) WithURLVars(vars map[string]string) (Artifact, error) {
	u, err := RenderURL(a.URL, vars)
	if err != nil {
		return a, err
	}
	a.URL = u
	return a, nil
}

func (a Artifact) baseName() string {
	return filepath.Base(a.Filename)
}
