package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jward/lexiscope/internal/syntax"
)

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".go":  "go",
	".py":  "python",
	".pyi": "python",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
}

// langToGrammar maps language names to tree-sitter Language objects.
// Lazily initialized on first call via sync.Once.
var (
	langToGrammar map[string]*sitter.Language
	grammarsOnce  sync.Once
)

func initGrammars() {
	grammarsOnce.Do(func() {
		langToGrammar = map[string]*sitter.Language{
			"go":         golang.GetLanguage(),
			"python":     python.GetLanguage(),
			"javascript": javascript.GetLanguage(),
		}
	})
}

// Languages returns the supported language names in sorted order.
func Languages() []string {
	initGrammars()
	out := make([]string, 0, len(langToGrammar))
	for l := range langToGrammar {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// LanguageForFile returns the canonical language name for a file path based
// on its extension. Returns ("", false) if the extension is not recognized.
func LanguageForFile(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extToLanguage[ext]
	return lang, ok
}

// GrammarFor returns the tree-sitter Language for a canonical language
// name. Returns (nil, false) if the language is not supported.
func GrammarFor(lang string) (*sitter.Language, bool) {
	initGrammars()
	l, ok := langToGrammar[lang]
	return l, ok
}

// Parse parses src as lang into a syntax tree.
func Parse(ctx context.Context, lang string, src []byte) (*syntax.Tree, error) {
	g, ok := GrammarFor(lang)
	if !ok {
		return nil, fmt.Errorf("runtime: unsupported language %q", lang)
	}
	return syntax.Parse(ctx, lang, g, src)
}

var (
	kindsMu    sync.Mutex
	kindsCache = map[string]map[string]bool{}
)

// NodeKinds returns the set of named node kinds the grammar of lang can
// produce, or nil for an unsupported language.
func NodeKinds(lang string) map[string]bool {
	g, ok := GrammarFor(lang)
	if !ok {
		return nil
	}
	kindsMu.Lock()
	defer kindsMu.Unlock()
	if k, ok := kindsCache[lang]; ok {
		return k
	}
	kinds := make(map[string]bool)
	for i := uint32(0); i < g.SymbolCount(); i++ {
		sym := sitter.Symbol(i)
		if g.SymbolType(sym) == sitter.SymbolTypeRegular {
			kinds[g.SymbolName(sym)] = true
		}
	}
	kindsCache[lang] = kinds
	return kinds
}
