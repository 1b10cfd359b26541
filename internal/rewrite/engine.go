package rewrite

import (
	"strings"

	"reroot/internal/errors"
)

// Rewrite records one changed line.
type Rewrite struct {
	Line    int    `json:"line" yaml:"line"`
	From    string `json:"from" yaml:"from"`
	To      string `json:"to" yaml:"to"`
	OldLine string `json:"old_line" yaml:"old_line"`
	NewLine string `json:"new_line" yaml:"new_line"`
}

// FileResult is the outcome of rewriting one file's content in memory.
// Content holds the rewritten bytes when Modified is true.
type FileResult struct {
	Path         string
	Rewrites     []Rewrite
	Modified     bool
	OriginalSize int64
	NewSize      int64
	Content      []byte
}

// Middleware defines a processing step in the rewrite pipeline.
type Middleware func(ProcessContext) ProcessContext

// ProcessContext carries state through the rewrite pipeline.
type ProcessContext struct {
	Rewriter *Rewriter
	FilePath string
	Content  []byte
	Lines    []string
	Result   *FileResult
	Error    error
}

// Engine runs file content through a middleware pipeline: input validation,
// line-by-line detection, reassembly and output validation.
type Engine struct {
	rewriter   *Rewriter
	middleware []Middleware
}

// NewEngine creates an engine with the standard pipeline.
func NewEngine(rewriter *Rewriter) *Engine {
	engine := &Engine{rewriter: rewriter}

	engine.Use(validateInputMiddleware)
	engine.Use(detectRewritesMiddleware)
	engine.Use(applyRewritesMiddleware)
	engine.Use(validateOutputMiddleware)

	return engine
}

// Use adds a middleware to the end of the pipeline.
func (e *Engine) Use(middleware Middleware) {
	e.middleware = append(e.middleware, middleware)
}

// Rewriter returns the rewriter the engine applies.
func (e *Engine) Rewriter() *Rewriter {
	return e.rewriter
}

// ProcessFile rewrites content read from filePath. The file itself is not
// touched; on error the result is returned unmodified alongside the error.
func (e *Engine) ProcessFile(filePath string, content []byte) (*FileResult, error) {
	ctx := ProcessContext{
		Rewriter: e.rewriter,
		FilePath: filePath,
		Content:  content,
		Result: &FileResult{
			Path:         filePath,
			OriginalSize: int64(len(content)),
			NewSize:      int64(len(content)),
		},
	}

	for _, mw := range e.middleware {
		ctx = mw(ctx)
		if ctx.Error != nil {
			ctx.Result.Modified = false
			ctx.Result.Content = nil
			ctx.Result.NewSize = ctx.Result.OriginalSize
			return ctx.Result, ctx.Error
		}
	}

	return ctx.Result, nil
}

func validateInputMiddleware(ctx ProcessContext) ProcessContext {
	if ctx.Rewriter == nil {
		ctx.Error = errors.NewRewriteError(ctx.FilePath, 0, "no rewriter configured", nil)
	}
	return ctx
}

// Lines are split on '\n' only, so a "\r" stays with its line and is
// treated as trailing whitespace by Classify.
func detectRewritesMiddleware(ctx ProcessContext) ProcessContext {
	if len(ctx.Content) == 0 {
		return ctx
	}

	ctx.Lines = strings.Split(string(ctx.Content), "\n")
	for i, line := range ctx.Lines {
		m, ok := Classify(line)
		if !ok {
			continue
		}

		resolved, err := ctx.Rewriter.Resolve(m.Path, ctx.FilePath)
		if err != nil {
			ctx.Error = errors.NewRewriteError(ctx.FilePath, i+1, "cannot re-express "+m.Path, err)
			return ctx
		}

		newLine := m.WithPath(resolved)
		if newLine == line {
			continue
		}

		ctx.Result.Rewrites = append(ctx.Result.Rewrites, Rewrite{
			Line:    i + 1,
			From:    m.Path,
			To:      resolved,
			OldLine: line,
			NewLine: newLine,
		})
		ctx.Lines[i] = newLine
	}

	ctx.Result.Modified = len(ctx.Result.Rewrites) > 0
	return ctx
}

func applyRewritesMiddleware(ctx ProcessContext) ProcessContext {
	if !ctx.Result.Modified {
		return ctx
	}

	content := []byte(strings.Join(ctx.Lines, "\n"))
	ctx.Result.Content = content
	ctx.Result.NewSize = int64(len(content))
	return ctx
}

func validateOutputMiddleware(ctx ProcessContext) ProcessContext {
	if ctx.Result.Modified && string(ctx.Result.Content) == string(ctx.Content) {
		ctx.Result.Modified = false
		ctx.Result.Content = nil
	}
	return ctx
}

// ApplyRecorded replays previously recorded rewrites onto content. A
// rewrite is applied where the line still reads expect(rw); a line already
// reading replace(rw) is left alone; any other line is counted as a
// conflict. ApplyRecorded is used by apply (expect is OldLine) and revert
// (expect is NewLine).
func ApplyRecorded(content []byte, rewrites []Rewrite, expect, replace func(Rewrite) string) (out []byte, applied, conflicts int) {
	lines := strings.Split(string(content), "\n")
	for _, rw := range rewrites {
		idx := rw.Line - 1
		if idx < 0 || idx >= len(lines) {
			conflicts++
			continue
		}
		switch lines[idx] {
		case expect(rw):
			lines[idx] = replace(rw)
			applied++
		case replace(rw):
		default:
			conflicts++
		}
	}
	return []byte(strings.Join(lines, "\n")), applied, conflicts
}
