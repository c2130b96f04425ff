package lexiscope

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jward/lexiscope/internal/highlight"
	"github.com/jward/lexiscope/internal/runtime"
	"github.com/jward/lexiscope/internal/scope"
	"github.com/jward/lexiscope/internal/store"
)

// Engine orchestrates the lexiscope pipeline: file discovery, change
// detection, resolution and query access.
type Engine struct {
	store    *store.Store
	registry *runtime.Registry
	log      *slog.Logger

	languages map[string]bool // nil means all languages

	descriptorDir string
	descriptorFS  fs.FS

	useParallel  bool
	workers      int
	namedReturns highlight.NamedReturns
}

// Option configures an Engine.
type Option func(*Engine)

// WithLanguages restricts which languages the Engine will process.
func WithLanguages(languages ...string) Option {
	return func(e *Engine) {
		e.languages = make(map[string]bool, len(languages))
		for _, lang := range languages {
			e.languages[lang] = true
		}
	}
}

// WithParallel controls parallel resolution. When true (default), IndexFiles
// resolves files on a worker pool and commits each file's rows in one
// transaction. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers caps the number of parallel workers. Zero or less means one
// per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithDescriptorDir loads descriptor files from dir in preference to the
// built-in ones.
func WithDescriptorDir(dir string) Option {
	return func(e *Engine) {
		e.descriptorDir = dir
	}
}

// WithDescriptorFS is like WithDescriptorDir for an fs.FS.
func WithDescriptorFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.descriptorFS = fsys
	}
}

// WithNamedReturns sets how QueryBuilder.Tokens and Analyze style named
// function results.
func WithNamedReturns(p NamedReturns) Option {
	return func(e *Engine) {
		e.namedReturns = p
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("lexiscope: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("lexiscope: migrate: %w", err)
	}

	e := &Engine{
		store:        s,
		log:          slog.New(slog.DiscardHandler),
		useParallel:  true,
		namedReturns: highlight.NamedReturnsLocal,
	}
	for _, opt := range opts {
		opt(e)
	}

	rOpts := []runtime.RegistryOption{runtime.WithRegistryLogger(e.log)}
	if e.descriptorFS != nil {
		rOpts = append(rOpts, runtime.WithDescriptorFS(e.descriptorFS))
	} else if e.descriptorDir != "" {
		rOpts = append(rOpts, runtime.WithDescriptorDir(e.descriptorDir))
	}
	e.registry = runtime.NewRegistry(rOpts...)

	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store, namedReturns: e.namedReturns}
}

// enabled reports whether lang passes the WithLanguages filter.
func (e *Engine) enabled(lang string) bool {
	return e.languages == nil || e.languages[lang]
}

// Analysis is the in-memory resolution of one buffer.
type Analysis struct {
	Path     string
	Language string
	Index    *scope.Index
	Tokens   []Token
}

// Analyze resolves src as the file at path without reading or writing the
// database. The language is taken from path's extension.
func (e *Engine) Analyze(ctx context.Context, path string, src []byte) (*Analysis, error) {
	lang, ok := runtime.LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("lexiscope: no language for %s", path)
	}
	ix, err := e.resolve(ctx, lang, src)
	if err != nil {
		return nil, fmt.Errorf("lexiscope: analyze %s: %w", path, err)
	}
	return &Analysis{
		Path:     path,
		Language: lang,
		Index:    ix,
		Tokens:   highlight.FromIndex(ix, e.namedReturns),
	}, nil
}

// resolve parses src and runs one resolution pass over it.
func (e *Engine) resolve(ctx context.Context, lang string, src []byte) (*scope.Index, error) {
	desc, err := e.registry.Descriptor(ctx, lang)
	if err != nil {
		return nil, err
	}
	tree, err := runtime.Parse(ctx, lang, src)
	if err != nil {
		return nil, err
	}
	return scope.Build(tree, desc, scope.WithLogger(e.log.With("language", lang))), nil
}

// DescriptorsChanged returns the indexed languages whose descriptor differs
// from the one their files were resolved with, in sorted order. A language
// with no recorded fingerprint counts as changed.
func (e *Engine) DescriptorsChanged(ctx context.Context) ([]string, error) {
	langs, err := e.store.Languages()
	if err != nil {
		return nil, fmt.Errorf("lexiscope: list languages: %w", err)
	}
	var changed []string
	for _, lang := range langs {
		if !e.enabled(lang) {
			continue
		}
		current, err := e.registry.Fingerprint(ctx, []string{lang})
		if err != nil {
			return nil, fmt.Errorf("lexiscope: fingerprint %s: %w", lang, err)
		}
		stored, err := e.store.DescriptorFingerprint(lang)
		if err != nil {
			return nil, fmt.Errorf("lexiscope: stored fingerprint %s: %w", lang, err)
		}
		if stored != current {
			changed = append(changed, lang)
		}
	}
	slices.Sort(changed)
	return changed, nil
}

// DescriptorInfo describes the descriptor loaded for one language.
type DescriptorInfo struct {
	Language    string `json:"language"`
	Origin      string `json:"origin"`
	Fingerprint string `json:"fingerprint"`
	// Stale is set when indexed files were resolved with another version.
	Stale bool `json:"stale"`
}

// Descriptors loads the descriptor of every enabled language and reports
// where it came from.
func (e *Engine) Descriptors(ctx context.Context) ([]DescriptorInfo, error) {
	changed, err := e.DescriptorsChanged(ctx)
	if err != nil {
		return nil, err
	}
	var out []DescriptorInfo
	for _, lang := range runtime.Languages() {
		if !e.enabled(lang) {
			continue
		}
		fp, err := e.registry.Fingerprint(ctx, []string{lang})
		if err != nil {
			return nil, fmt.Errorf("lexiscope: fingerprint %s: %w", lang, err)
		}
		out = append(out, DescriptorInfo{
			Language:    lang,
			Origin:      e.registry.Origin(lang),
			Fingerprint: fp,
			Stale:       slices.Contains(changed, lang),
		})
	}
	return out, nil
}

// invalidateStale forgets the content hashes of every language whose
// descriptor changed so their files are resolved again.
func (e *Engine) invalidateStale(ctx context.Context) error {
	changed, err := e.DescriptorsChanged(ctx)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}
	n, err := e.store.InvalidateLanguages(changed)
	if err != nil {
		return fmt.Errorf("lexiscope: invalidate: %w", err)
	}
	e.log.Info("index.descriptors_changed", "languages", changed, "files", n)
	return nil
}

// recordFingerprints stores the current descriptor fingerprint of every
// language in langs.
func (e *Engine) recordFingerprints(ctx context.Context, langs map[string]bool) error {
	for lang := range langs {
		fp, err := e.registry.Fingerprint(ctx, []string{lang})
		if err != nil {
			return fmt.Errorf("lexiscope: fingerprint %s: %w", lang, err)
		}
		if err := e.store.SetDescriptorFingerprint(lang, fp); err != nil {
			return fmt.Errorf("lexiscope: record fingerprint %s: %w", lang, err)
		}
	}
	return nil
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// resolution runs on a worker pool with one transaction per file.
// Otherwise falls back to the serial path.
//
// For each file:
// 1. Detect language from extension
// 2. Skip unsupported or filtered-out languages
// 3. Skip unchanged files (same content hash)
// 4. Delete stale rows, insert the file record
// 5. Parse, resolve and write the index
//
// Errors on individual files are collected; processing continues.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	if err := e.invalidateStale(ctx); err != nil {
		return err
	}
	start := time.Now()
	var (
		langs map[string]bool
		err   error
	)
	if e.useParallel {
		langs, err = e.indexFilesParallel(ctx, paths)
	} else {
		langs, err = e.indexFilesSerial(ctx, paths)
	}
	if ferr := e.recordFingerprints(ctx, langs); ferr != nil && err == nil {
		err = ferr
	}
	e.log.Info("index.done", "files", len(paths), "languages", len(langs), "elapsed", time.Since(start))
	return err
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) (map[string]bool, error) {
	langs := make(map[string]bool)
	var errs []error
	for _, path := range paths {
		lang, err := e.indexFile(ctx, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
			continue
		}
		if lang != "" {
			langs[lang] = true
		}
	}
	if len(errs) > 0 {
		return langs, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return langs, nil
}

// indexFile indexes one file and returns its language, or "" when the file
// was skipped.
func (e *Engine) indexFile(ctx context.Context, path string) (string, error) {
	item, skip, err := e.prepareFile(path)
	if err != nil || skip {
		return "", err
	}
	ix, err := e.resolve(ctx, item.lang, item.content)
	if err != nil {
		e.forget(item)
		return "", err
	}
	if err := store.WriteIndex(e.store, item.fileID, ix); err != nil {
		e.forget(item)
		return "", err
	}
	e.logIndexed(item, ix)
	return item.lang, nil
}

// forget drops the record of a file that failed to index, so the next run
// does not mistake it for an unchanged file.
func (e *Engine) forget(item workItem) {
	if err := e.store.DeleteFile(item.fileID); err != nil {
		e.log.Warn("index.forget", "path", item.path, "error", err)
	}
}

func (e *Engine) logIndexed(item workItem, ix *scope.Index) {
	e.log.Debug("index.file",
		"path", item.path,
		"language", item.lang,
		"scopes", len(ix.Scopes()),
		"declarations", len(ix.Decls()),
		"references", len(ix.Refs()),
		"diagnostics", len(ix.Diagnostics()),
	)
}

// workItem holds everything needed to resolve one prepared file.
type workItem struct {
	path    string
	lang    string
	fileID  int64
	content []byte
}

// prepareFile does the serial part of indexing one file: hash check,
// cleanup and the new file record. skip=true means the file is unchanged,
// unsupported or filtered out.
func (e *Engine) prepareFile(path string) (workItem, bool, error) {
	lang, ok := runtime.LanguageForFile(path)
	if !ok {
		return workItem{}, true, nil
	}
	if !e.enabled(lang) {
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		e.log.Debug("index.skip", "path", path, "reason", "unchanged")
		return workItem{}, true, nil
	}
	if existing != nil {
		if err := e.store.DeleteFile(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old data: %w", err)
		}
	}

	fileID, err := e.store.InsertFile(&store.File{
		Path:        path,
		Language:    lang,
		Hash:        hash,
		LineCount:   bytes.Count(content, []byte{'\n'}) + 1,
		LastIndexed: time.Now(),
	})
	if err != nil {
		return workItem{}, false, fmt.Errorf("insert file: %w", err)
	}
	return workItem{path: path, lang: lang, fileID: fileID, content: content}, false, nil
}

// skipDirs are directories excluded from the filesystem walk.
var skipDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
}

// IndexDirectory walks root and indexes all files with supported extensions.
// If root is inside a git repository, uses git ls-files to respect .gitignore.
// Falls back to filesystem walk (skipping hidden dirs, node_modules, vendor,
// __pycache__) if git is unavailable.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	paths, err := e.gitListFiles(ctx, root)
	if err != nil {
		e.log.Debug("index.walk", "root", root, "reason", err.Error())
		paths, err = e.walkListFiles(root)
		if err != nil {
			return err
		}
	}
	return e.IndexFiles(ctx, paths)
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root, filtered to supported languages.
func (e *Engine) gitListFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if _, ok := runtime.LanguageForFile(absPath); ok {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := runtime.LanguageForFile(path); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}

// Prune removes files from the index that no longer exist on disk and
// returns how many were removed.
func (e *Engine) Prune() (int, error) {
	files, err := e.store.Files()
	if err != nil {
		return 0, fmt.Errorf("lexiscope: list files: %w", err)
	}
	var gone []int64
	for _, f := range files {
		if _, err := os.Stat(f.Path); os.IsNotExist(err) {
			gone = append(gone, f.ID)
		}
	}
	if len(gone) == 0 {
		return 0, nil
	}
	if err := e.store.DeleteFiles(gone); err != nil {
		return 0, fmt.Errorf("lexiscope: prune: %w", err)
	}
	e.log.Info("index.prune", "files", len(gone))
	return len(gone), nil
}
