package runtime

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/jward/lexiscope/internal/grammar"
)

//go:embed descriptors
var embedded embed.FS

// Descriptor file extensions in lookup order.
var descriptorExts = []string{".yaml", ".yml", ".risor"}

// Registry resolves a language name to its compiled descriptor. Sources are
// tried in order: the override directory or filesystem, the descriptors
// shipped with the binary, and finally the built-in Go table. Compiled
// descriptors are cached and shared.
type Registry struct {
	overrideDir string
	overrideFS  fs.FS
	log         *slog.Logger

	mu     sync.Mutex
	cache  map[string]*grammar.Descriptor
	origin map[string]string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDescriptorDir adds a directory of descriptor files that take
// precedence over the shipped ones.
func WithDescriptorDir(dir string) RegistryOption {
	return func(r *Registry) {
		r.overrideDir = dir
	}
}

// WithDescriptorFS is like WithDescriptorDir for an fs.FS.
func WithDescriptorFS(fsys fs.FS) RegistryOption {
	return func(r *Registry) {
		r.overrideFS = fsys
	}
}

// WithRegistryLogger sets the logger used for descriptor warnings and for
// the log global of descriptor scripts.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry creates a Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		log:    slog.New(slog.DiscardHandler),
		cache:  make(map[string]*grammar.Descriptor),
		origin: make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.overrideDir != "" && r.overrideFS == nil {
		r.overrideFS = os.DirFS(r.overrideDir)
	}
	return r
}

// source is one place a descriptor may come from.
type source struct {
	fsys  fs.FS
	label string
}

func (r *Registry) sources() []source {
	var out []source
	if r.overrideFS != nil {
		label := r.overrideDir
		if label == "" {
			label = "<fs>"
		}
		out = append(out, source{fsys: r.overrideFS, label: label})
	}
	sub, err := fs.Sub(embedded, "descriptors")
	if err == nil {
		out = append(out, source{fsys: sub, label: "<builtin>"})
	}
	return out
}

// Descriptor returns the compiled descriptor for language.
func (r *Registry) Descriptor(ctx context.Context, language string) (*grammar.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.cache[language]; ok {
		return d, nil
	}
	d, err := r.load(ctx, language)
	if err != nil {
		return nil, err
	}
	r.checkKinds(d)
	r.cache[language] = d
	return d, nil
}

func (r *Registry) load(ctx context.Context, language string) (*grammar.Descriptor, error) {
	for _, src := range r.sources() {
		for _, ext := range descriptorExts {
			name := language + ext
			data, err := fs.ReadFile(src.fsys, name)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("runtime: read descriptor %s: %w", name, err)
			}
			d, err := r.decode(ctx, src, name, language, data)
			if err != nil {
				return nil, fmt.Errorf("runtime: descriptor %s/%s: %w", src.label, name, err)
			}
			r.log.Debug("descriptor.load", "language", language, "source", src.label, "file", name)
			r.origin[language] = src.label + "/" + name
			return d, nil
		}
	}
	if language == "go" {
		r.origin[language] = "<builtin>/go"
		return grammar.Go(), nil
	}
	return nil, fmt.Errorf("runtime: no descriptor for language %q", language)
}

func (r *Registry) decode(ctx context.Context, src source, name, language string, data []byte) (*grammar.Descriptor, error) {
	if strings.HasSuffix(name, ".risor") {
		rt := NewRuntime("", WithRuntimeFS(src.fsys), WithRuntimeLogger(r.log))
		return rt.RunDescriptor(ctx, name, language)
	}
	d, err := grammar.DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	if d.Language != language {
		return nil, fmt.Errorf("describes %q, want %q", d.Language, language)
	}
	return d, nil
}

// checkKinds warns about rules keyed by node kinds the grammar never
// produces. Such rules are harmless but usually a typo.
func (r *Registry) checkKinds(d *grammar.Descriptor) {
	known := NodeKinds(d.Language)
	if known == nil {
		return
	}
	for key := range d.Rules {
		kind := key
		if i := strings.IndexByte(key, ':'); i >= 0 {
			kind = key[i+1:]
		}
		if !known[kind] {
			r.log.Warn("descriptor.unknown_kind", "language", d.Language, "rule", key)
		}
	}
}

// Fingerprint hashes the descriptors of languages into one value that
// changes whenever any of their rules change.
func (r *Registry) Fingerprint(ctx context.Context, languages []string) (string, error) {
	langs := slices.Clone(languages)
	slices.Sort(langs)
	h := sha256.New()
	for _, lang := range langs {
		d, err := r.Descriptor(ctx, lang)
		if err != nil {
			return "", err
		}
		h.Write([]byte(lang))
		h.Write([]byte(d.Fingerprint()))
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Origin reports where the cached descriptor of language was loaded from,
// or "" if it has not been loaded.
func (r *Registry) Origin(language string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.origin[language]
}
