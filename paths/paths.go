// Package paths maps index relative paths onto a local dataset root.
package paths

import (
	"os"
	"path/filepath"
)

const (
	HomeEnv     = "DATACHECK_HOME"
	defaultDir  = "datacheck"
	fallbackDir = "/tmp"
)

// DefaultHome is the fallback dataset root: $DATACHECK_HOME when set,
// otherwise $HOME/datacheck, otherwise /tmp/datacheck.
func DefaultHome() string {
	if h := os.Getenv(HomeEnv); h != "" {
		return h
	}
	home := os.Getenv("HOME")
	if home == "" {
		home = fallbackDir
	}
	return filepath.Join(home, defaultDir)
}

// Resolve joins rel onto root. A nil rel means the file does not apply
// and yields ok == false. An empty root resolves against DefaultHome.
func Resolve(root string, rel *string) (string, bool) {
	if rel == nil {
		return "", false
	}
	if root == "" {
		root = DefaultHome()
	}
	return filepath.Join(root, *rel), true
}

// Resolver carries an explicit root so callers do not depend on the
// process environment once it has been constructed.
type Resolver struct {
	Root string
}

func New(root string) Resolver {
	if root == "" {
		root = DefaultHome()
	}
	return Resolver{Root: root}
}

func (r Resolver) Resolve(rel *string) (string, bool) {
	return Resolve(r.Root, rel)
}

// Join resolves a path that is known to be present.
func (r Resolver) Join(rel string) string {
	p, _ := Resolve(r.Root, &rel)
	return p
}
