// Package sandbox decides whether a caller-nominated output path may be
// written. It enforces an extension allow-list and directory
// containment; it never touches the filesystem, the decision is a pure
// function of the path and the process-wide policy.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvAllowedDirs holds the directory restriction policy: unset for
// CWD-only, the wildcard, or a colon-separated list of directories.
const EnvAllowedDirs = "PLANTVIZ_ALLOWED_DIRS"

// Wildcard disables directory containment. The extension gate still
// applies.
const Wildcard = "*"

// allowedExtensions are the only formats the rendering endpoint
// produces, so the only extensions a save may target.
var allowedExtensions = []string{".svg", ".png"}

// Decision is the result of evaluating a candidate output path.
// A denial carries a reason naming the rule that failed, precise
// enough for the calling agent to correct the request.
type Decision struct {
	Allowed bool
	Reason  string
}

// Policy is a snapshot of the directory restriction configuration.
// Callers that need a fixed view (tests, dry-runs) build one directly;
// everything else goes through IsPathAllowed.
type Policy struct {
	// AllowedDirs is the raw policy value: empty, Wildcard, or a
	// colon-separated directory list.
	AllowedDirs string
	// WorkDir anchors relative paths and is always implicitly allowed.
	WorkDir string
}

// PolicyFromEnv reads the policy fresh from the environment and the
// current working directory. No caching: a change to the environment
// takes effect on the next check.
func PolicyFromEnv() Policy {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Policy{
		AllowedDirs: os.Getenv(EnvAllowedDirs),
		WorkDir:     wd,
	}
}

// IsPathAllowed evaluates path against the environment-backed policy.
func IsPathAllowed(path string) Decision {
	return PolicyFromEnv().Check(path)
}

// Check evaluates a candidate path against this policy. The extension
// gate runs unconditionally, even in wildcard mode.
func (p Policy) Check(path string) Decision {
	abs := p.resolve(path)

	ext := strings.ToLower(filepath.Ext(abs))
	if ext == "" {
		return Decision{Reason: fmt.Sprintf(
			"invalid extension: %q has no extension (allowed: %s)",
			path, strings.Join(allowedExtensions, ", "))}
	}
	if !extensionAllowed(ext) {
		return Decision{Reason: fmt.Sprintf(
			"invalid extension %q (allowed: %s)",
			ext, strings.Join(allowedExtensions, ", "))}
	}

	if strings.TrimSpace(p.AllowedDirs) == Wildcard {
		return Decision{Allowed: true}
	}

	dirs := p.allowedDirs()
	for _, dir := range dirs {
		if contains(dir, abs) {
			return Decision{Allowed: true}
		}
	}
	return Decision{Reason: fmt.Sprintf(
		"path %q is outside allowed directories: %s",
		abs, strings.Join(dirs, ", "))}
}

func extensionAllowed(ext string) bool {
	for _, allowed := range allowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// contains reports whether candidate equals dir or sits beneath it.
// Simple prefix containment on normalized paths, not a symlink-aware
// real-path check.
func contains(dir, candidate string) bool {
	return candidate == dir ||
		strings.HasPrefix(candidate, dir+string(filepath.Separator))
}

// allowedDirs resolves the policy to a normalized directory set. The
// working directory is always included, regardless of the explicit
// list. Blank list entries are discarded.
func (p Policy) allowedDirs() []string {
	dirs := []string{filepath.Clean(p.WorkDir)}
	for _, entry := range strings.Split(p.AllowedDirs, ":") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		dirs = append(dirs, p.resolve(entry))
	}
	return dirs
}

// resolve normalizes a path to absolute form, anchoring relative paths
// at the policy working directory. Join/Clean collapse redundant
// separators and resolve "." and ".." segments.
func (p Policy) resolve(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.WorkDir, path)
	}
	return filepath.Clean(path)
}
