package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/lexiscope/internal/grammar"
)

// Runtime embeds a Risor VM and evaluates descriptor scripts. A descriptor
// script builds its rule table as a map and leaves it as the value of its
// last expression.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	log        *slog.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger routes the scripts' log calls to l.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRuntime creates a Runtime that loads scripts from scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		scriptsDir: scriptsDir,
		log:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunDescriptor loads the script at scriptPath, evaluates it for language
// and compiles its result into a Descriptor.
func (r *Runtime) RunDescriptor(ctx context.Context, scriptPath, language string) (*grammar.Descriptor, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.descriptor(ctx, src, scriptPath, language)
}

// RunDescriptorSource evaluates Risor source directly. Useful for testing
// without script files.
func (r *Runtime) RunDescriptorSource(ctx context.Context, source, language string) (*grammar.Descriptor, error) {
	return r.descriptor(ctx, source, "<inline>", language)
}

func (r *Runtime) descriptor(ctx context.Context, source, label, language string) (*grammar.Descriptor, error) {
	result, err := r.eval(ctx, source, label, map[string]any{"language": object.NewString(language)})
	if err != nil {
		return nil, err
	}
	m, ok := result.Interface().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("runtime: script %s: result is %s, want a map", label, result.Type())
	}
	if _, set := m["language"]; !set {
		m["language"] = language
	}
	d, err := grammar.FromMap(m)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	if d.Language != language {
		return nil, fmt.Errorf("runtime: script %s: describes %q, want %q", label, d.Language, language)
	}
	return d, nil
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (object.Object, error) {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return result, nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// For fs.FS, strip any leading path separator so the path is
		// relative within the FS (e.g., "/javascript.risor" -> "javascript.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"qualify":    makeQualifyFn(),
		"node_kinds": makeNodeKindsFn(),
		"has_kind":   makeHasKindFn(),
		"log":        mustProxy(&logObject{log: r.log}),
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
