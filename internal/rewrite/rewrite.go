// Package rewrite re-expresses relative import paths as paths from a project
// root. It recognizes two single-line statement shapes, module import/export
// and stylesheet @import, and leaves every other line untouched.
// Multi-line imports and dynamic import() calls are not recognized.
package rewrite

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Shape identifies which statement form a line matched.
type Shape int

// Recognized statement shapes.
const (
	ShapeNone Shape = iota
	ShapeModule
	ShapeStylesheet
)

func (s Shape) String() string {
	switch s {
	case ShapeModule:
		return "module"
	case ShapeStylesheet:
		return "stylesheet"
	default:
		return "none"
	}
}

// Both patterns are anchored to the whole trimmed line. The path group only
// accepts literals starting with '.' or '/', so bare specifiers never match.
// Neither the prefix nor the path may contain a ';', which keeps lines with
// several statements out.
var (
	moduleImportRegex     = regexp.MustCompile(`^((?:import|export) [^;]*? from ['"])([./][^'";]*)(['"];)$`)
	stylesheetImportRegex = regexp.MustCompile(`^(@import ['"])([./][^'";]*)(['"];)$`)
)

// Match is a line split around its path literal. Joining the fields in order
// reproduces the original line exactly.
type Match struct {
	Shape    Shape
	Leading  string
	Prefix   string
	Path     string
	Suffix   string
	Trailing string
}

// String reassembles the line.
func (m Match) String() string {
	return m.Leading + m.Prefix + m.Path + m.Suffix + m.Trailing
}

// WithPath returns the line with the path literal replaced by p.
func (m Match) WithPath(p string) string {
	return m.Leading + m.Prefix + p + m.Suffix + m.Trailing
}

// Classify reports whether line is an eligible import statement and, if so,
// splits it around the path literal.
func Classify(line string) (Match, bool) {
	rest := strings.TrimLeftFunc(line, unicode.IsSpace)
	core := strings.TrimRightFunc(rest, unicode.IsSpace)
	m := Match{
		Leading:  line[:len(line)-len(rest)],
		Trailing: rest[len(core):],
	}

	if groups := moduleImportRegex.FindStringSubmatch(core); groups != nil {
		m.Shape = ShapeModule
		m.Prefix, m.Path, m.Suffix = groups[1], groups[2], groups[3]
		return m, true
	}
	if groups := stylesheetImportRegex.FindStringSubmatch(core); groups != nil {
		m.Shape = ShapeStylesheet
		m.Prefix, m.Path, m.Suffix = groups[1], groups[2], groups[3]
		return m, true
	}
	return Match{}, false
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithDotPrefix makes the Rewriter prepend "./" to results that do not
// already start with '.'.
func WithDotPrefix(enabled bool) Option {
	return func(r *Rewriter) {
		r.dotPrefix = enabled
	}
}

// Rewriter resolves import path literals against a fixed project root.
// It holds no mutable state and is safe for concurrent use.
type Rewriter struct {
	rootDir   string
	dotPrefix bool
}

// New returns a Rewriter for the given project root. rootDir should be
// absolute; a relative root is resolved against the working directory.
func New(rootDir string, opts ...Option) *Rewriter {
	if abs, err := filepath.Abs(rootDir); err == nil {
		rootDir = abs
	}
	r := &Rewriter{rootDir: filepath.Clean(rootDir)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RootDir returns the project root paths are expressed against.
func (r *Rewriter) RootDir() string {
	return r.rootDir
}

// Resolve maps a path literal found in filePath to a path from the root.
// Literals starting with '/' are taken as absolute filesystem paths. The
// result always uses forward slashes.
func (r *Rewriter) Resolve(literal, filePath string) (string, error) {
	lit := filepath.FromSlash(literal)

	var target string
	if filepath.IsAbs(lit) {
		target = filepath.Clean(lit)
	} else {
		dir := filepath.Dir(filePath)
		if !filepath.IsAbs(dir) {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return "", err
			}
			dir = abs
		}
		target = filepath.Join(dir, lit)
	}

	rel, err := filepath.Rel(r.rootDir, target)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)

	if r.dotPrefix && !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return rel, nil
}

// Line rewrites a single line from filePath. It returns the possibly
// unchanged line and whether it changed. Lines that are not eligible import
// statements are returned as is with a nil error.
func (r *Rewriter) Line(line, filePath string) (string, bool, error) {
	m, ok := Classify(line)
	if !ok {
		return line, false, nil
	}

	resolved, err := r.Resolve(m.Path, filePath)
	if err != nil {
		return line, false, err
	}

	out := m.WithPath(resolved)
	return out, out != line, nil
}

// RewriteLine rewrites line as found in filePath against rootDir. It never
// fails: when the path cannot be re-expressed the line is returned unchanged.
func RewriteLine(line, filePath, rootDir string) string {
	out, _, err := New(rootDir).Line(line, filePath)
	if err != nil {
		return line
	}
	return out
}
