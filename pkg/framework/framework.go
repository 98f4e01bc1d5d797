// Package framework implements component C6, the framework loader:
// parsing a framework.toml manifest (or inferring one from directory
// contents), classifying each framework into a trust tier, validating
// declared dependencies, and producing the fixed execution order the
// orchestrator walks each round.
package framework

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gitrdm/rdfinfer/internal/parallel"
	"github.com/gitrdm/rdfinfer/pkg/engine"
	"github.com/gitrdm/rdfinfer/pkg/rulelang"
)

// FileKind identifies what a bundled file contributes to a framework.
type FileKind int

const (
	KindTTLData FileKind = iota
	KindRules
	KindSPARQLConstruct
	KindSPARQLUpdate
)

func (k FileKind) String() string {
	switch k {
	case KindTTLData:
		return "ttl_data"
	case KindRules:
		return "jena_rules"
	case KindSPARQLConstruct:
		return "sparql_construct"
	case KindSPARQLUpdate:
		return "sparql_update"
	default:
		return "unknown"
	}
}

// Tier is a framework's trust classification. Execution always proceeds
// Internal → Core → Privacy → Custom (spec §4.6); within one tier,
// frameworks run in load order — dependency declarations are validated
// eagerly but do not reorder execution (see DESIGN.md Open Question
// resolution).
type Tier int

const (
	Internal Tier = iota
	Core
	Privacy
	Custom
)

func (t Tier) String() string {
	switch t {
	case Internal:
		return "internal"
	case Core:
		return "core"
	case Privacy:
		return "privacy"
	case Custom:
		return "custom"
	default:
		return "custom"
	}
}

func parseTier(s string) Tier {
	switch s {
	case "internal":
		return Internal
	case "core":
		return Core
	case "privacy":
		return Privacy
	default:
		return Custom
	}
}

// IncludedFile is one file bundled into a framework, with its compiled
// form attached where the kind calls for pre-compilation.
type IncludedFile struct {
	Path        string
	Kind        FileKind
	Content     []byte
	Name        string
	DisplayPath string

	// CompiledRules holds the parsed+compiled rule set when Kind ==
	// KindRules; nil otherwise.
	CompiledRules []*rulelang.CompiledRule
	// RawRules holds the parsed (but SPARQL-uncompiled) rule ASTs, which
	// the in-memory execution engine evaluates directly.
	RawRules []*rulelang.Rule

	// ParsedSPARQL holds the parsed form of a raw SPARQL CONSTRUCT/UPDATE
	// file, when Kind == KindSPARQLConstruct or KindSPARQLUpdate; nil
	// otherwise. The orchestrator executes it the same way it executes
	// RawRules, via the shared engine join evaluator.
	ParsedSPARQL *engine.ParsedSPARQLText
}

// Framework is one loaded framework package: a manifest plus its bundled
// files, classified into a Tier.
type Framework struct {
	Name        string
	Path        string
	Tier        Tier
	Version     string
	Description string
	DependsOn   []string
	Files       map[FileKind][]*IncludedFile
}

// manifestConfig mirrors framework.toml's shape for BurntSushi/toml
// decoding.
type manifestConfig struct {
	Name        string              `toml:"name"`
	Type        string              `toml:"type"`
	Version     string              `toml:"version"`
	Description string              `toml:"description"`
	DependsOn   []string            `toml:"depends_on"`
	Files       map[string][]string `toml:"files"`
}

var fileCategoryToKind = map[string]FileKind{
	"model":      KindTTLData,
	"rules":      KindRules,
	"constructs": KindSPARQLConstruct,
	"updates":    KindSPARQLUpdate,
}

// LoadFromManifest loads a framework from path/framework.toml, falling
// back to directory inference when no manifest is present.
func LoadFromManifest(path string) (*Framework, error) {
	manifestPath := filepath.Join(path, "framework.toml")
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		return LoadFromDirectory(path)
	}

	var cfg manifestConfig
	if _, err := toml.DecodeFile(manifestPath, &cfg); err != nil {
		return nil, ErrManifest.New(path, err.Error())
	}

	fw := &Framework{
		Name:        cfg.Name,
		Path:        path,
		Tier:        parseTier(cfg.Type),
		Version:     firstNonEmpty(cfg.Version, "1.0.0"),
		Description: cfg.Description,
		DependsOn:   cfg.DependsOn,
		Files:       make(map[FileKind][]*IncludedFile),
	}

	pool := parallel.NewPool(parallel.DefaultSize())
	defer pool.Close()

	type job struct {
		relPath string
		kind    FileKind
	}
	var jobs []job
	for category, relPaths := range cfg.Files {
		kind, ok := fileCategoryToKind[category]
		if !ok {
			continue
		}
		for _, rel := range relPaths {
			jobs = append(jobs, job{relPath: rel, kind: kind})
		}
	}

	results := make([]*IncludedFile, len(jobs))
	errs := make([]error, len(jobs))
	for i, j := range jobs {
		i, j := i, j
		pool.Submit(func() {
			fullPath := filepath.Join(path, j.relPath)
			if _, statErr := os.Stat(fullPath); statErr != nil {
				return
			}
			included, err := loadAndPrepareFile(fullPath, j.kind, path, fw.Name)
			results[i] = included
			errs[i] = err
		})
	}
	pool.Wait()

	for i, j := range jobs {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if results[i] == nil {
			continue
		}
		fw.Files[j.kind] = append(fw.Files[j.kind], results[i])
	}

	return fw, nil
}

// LoadFromDirectory infers a framework from a directory's contents when
// it has no framework.toml: every *.ttl is model data, every *.rules is
// a rule file, and every *.rq is classified as an update (if it contains
// "UPDATE" or "DELETE") or a construct query otherwise.
func LoadFromDirectory(path string) (*Framework, error) {
	name := filepath.Base(path)
	fw := &Framework{
		Name:        name,
		Path:        path,
		Tier:        classifyByPath(path, name),
		Version:     "1.0.0",
		Description: "Auto-loaded " + name + " framework",
		Files:       make(map[FileKind][]*IncludedFile),
	}

	var paths []string
	var kinds []FileKind

	_ = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		switch {
		case strings.HasSuffix(p, ".ttl"):
			paths = append(paths, p)
			kinds = append(kinds, KindTTLData)
		case strings.HasSuffix(p, ".rules"):
			paths = append(paths, p)
			kinds = append(kinds, KindRules)
		case strings.HasSuffix(p, ".rq"):
			content, readErr := os.ReadFile(p)
			if readErr != nil {
				return readErr
			}
			kind := KindSPARQLConstruct
			if bytes.Contains(content, []byte("UPDATE")) || bytes.Contains(content, []byte("DELETE")) {
				kind = KindSPARQLUpdate
			}
			paths = append(paths, p)
			kinds = append(kinds, kind)
		}
		return nil
	})

	pool := parallel.NewPool(parallel.DefaultSize())
	defer pool.Close()

	results := make([]*IncludedFile, len(paths))
	errs := make([]error, len(paths))
	for i := range paths {
		i := i
		pool.Submit(func() {
			included, err := loadAndPrepareFile(paths[i], kinds[i], path, name)
			results[i] = included
			errs[i] = err
		})
	}
	pool.Wait()

	for i := range paths {
		if errs[i] != nil {
			return nil, errs[i]
		}
		fw.Files[kinds[i]] = append(fw.Files[kinds[i]], results[i])
	}

	return fw, nil
}

// classifyByPath infers a framework's tier from its path, mirroring the
// original system's directory-convention heuristic: anything under a
// "metamodel" directory named "inference" is internal, anything else
// under "metamodel" is core, anything under "examples/frameworks" is
// privacy, and everything else is custom.
func classifyByPath(path, name string) Tier {
	parts := strings.Split(filepath.ToSlash(path), "/")
	underMetamodel := false
	for _, p := range parts {
		if p == "metamodel" {
			underMetamodel = true
			break
		}
	}
	switch {
	case underMetamodel && name == "inference":
		return Internal
	case underMetamodel:
		return Core
	case strings.Contains(filepath.ToSlash(path), "examples/frameworks"):
		return Privacy
	default:
		return Custom
	}
}

func loadAndPrepareFile(path string, kind FileKind, frameworkPath, frameworkName string) (*IncludedFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(frameworkPath, path)
	if err != nil {
		rel = path
	}
	displayPath := truncateDisplayPath(frameworkName + ":" + filepath.ToSlash(rel))

	included := &IncludedFile{
		Path:        path,
		Kind:        kind,
		Content:     content,
		Name:        filepath.Base(path),
		DisplayPath: displayPath,
	}

	switch kind {
	case KindRules:
		rules, err := rulelang.ParseRules(string(content))
		if err != nil {
			return nil, err
		}
		compiled, err := rulelang.CompileAll(rules, rulelang.CompileOptions{})
		if err != nil {
			return nil, err
		}
		included.RawRules = rules
		included.CompiledRules = compiled

	case KindSPARQLConstruct, KindSPARQLUpdate:
		parsed, err := engine.ParseSPARQLText(string(content))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", displayPath, err)
		}
		included.ParsedSPARQL = parsed
	}

	return included, nil
}

// truncateDisplayPath shortens a long "framework:path/to/file" string to
// at most maxLength characters, keeping the framework name and the last
// two path segments — ported from the original's _truncate_display_path.
func truncateDisplayPath(displayPath string) string {
	const maxLength = 60
	if len(displayPath) <= maxLength {
		return displayPath
	}

	if idx := strings.Index(displayPath, ":"); idx >= 0 {
		frameworkPart := displayPath[:idx]
		pathPart := displayPath[idx+1:]
		segments := strings.Split(pathPart, "/")
		if len(segments) > 2 {
			return frameworkPart + ":.../" + strings.Join(segments[len(segments)-2:], "/")
		}
		return displayPath
	}

	segments := strings.Split(displayPath, "/")
	if len(segments) > 3 {
		return ".../" + strings.Join(segments[len(segments)-3:], "/")
	}
	return displayPath
}

func firstNonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// LoadExternal loads a framework bundle as an externally-supplied
// framework (a Privacy or Custom package the operator points at), and
// rejects it if its manifest declares an Internal or Core trust tier —
// those tiers are reserved for the system's own bundled frameworks.
func LoadExternal(path string) (*Framework, error) {
	fw, err := LoadFromManifest(path)
	if err != nil {
		return nil, err
	}
	if fw.Tier == Internal || fw.Tier == Core {
		return nil, ErrIllegalTrustTier.New(fw.Name, fw.Tier.String())
	}
	return fw, nil
}

// ValidateDependencies checks that every framework's depends_on entries
// name an already-loaded framework, returning ErrMissingDependency for
// the first unresolved entry found (spec §4.6: MissingDependency). It
// does not check trust tiers; LoadExternal rejects Internal/Core tiers.
func ValidateDependencies(loaded []*Framework) error {
	byName := make(map[string]bool, len(loaded))
	for _, fw := range loaded {
		byName[fw.Name] = true
	}

	for _, fw := range loaded {
		for _, dep := range fw.DependsOn {
			if !byName[dep] {
				return ErrMissingDependency.New(fw.Name, dep)
			}
		}
	}
	return nil
}

// Ordered returns loaded frameworks partitioned into Internal → Core →
// Privacy → Custom order, preserving within-tier load order (no
// topological sort within a tier — see DESIGN.md).
func Ordered(loaded []*Framework) []*Framework {
	var out []*Framework
	for _, tier := range []Tier{Internal, Core, Privacy, Custom} {
		for _, fw := range loaded {
			if fw.Tier == tier {
				out = append(out, fw)
			}
		}
	}
	return out
}

// SortedFileKinds returns the FileKind keys of fw.Files in a fixed,
// deterministic order (TTL data, rules, constructs, updates) rather than
// Go's randomized map iteration order.
func (fw *Framework) SortedFileKinds() []FileKind {
	order := []FileKind{KindTTLData, KindRules, KindSPARQLConstruct, KindSPARQLUpdate}
	var out []FileKind
	for _, k := range order {
		if _, ok := fw.Files[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
