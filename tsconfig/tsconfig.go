// Package tsconfig models a TypeScript tsconfig.json and loads configs
// through their extends chain and project references, tolerating the
// JSON-with-comments dialect TypeScript accepts.
package tsconfig

import (
	"encoding/json"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/jsonc"

	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/internal/pathutil"
	"github.com/modresolve/resolver/rerror"
)

// ReferencesMode controls how a config's project references are consumed.
type ReferencesMode int

const (
	// ReferencesAuto loads references lazily the first time they're needed.
	ReferencesAuto ReferencesMode = iota
	// ReferencesPaths uses a caller-supplied reference list instead of the
	// config file's own "references" field.
	ReferencesPaths
	// ReferencesDisabled drops project references entirely.
	ReferencesDisabled
)

// PathKind classifies a compiled "paths" key.
type PathKind int

const (
	// PathExact is a key with no "*" that was suffixed "$" in the source.
	PathExact PathKind = iota
	// PathWildcard is a key containing exactly one "*".
	PathWildcard
	// PathPrefix is a key with no "*" and no trailing "$".
	PathPrefix
)

// PathPattern is one compiled entry of compilerOptions.paths.
type PathPattern struct {
	Kind     PathKind
	Key      string   // the original key, a trailing "$" stripped (Wildcard keys keep their "*")
	Prefix   string   // text before "*" for Wildcard, empty otherwise
	Suffix   string   // text after "*" for Wildcard
	Targets  []string // absolute, normalise_with(paths_base, value) applied
}

// Config is the parsed, not-yet-merged view of a single tsconfig.json file.
type Config struct {
	Path       string
	Dir        string
	Extends    []string
	BaseURL    string
	HasBaseURL bool
	RawPaths   map[string][]string
	RootDirs   []string
	OutDir     string
	Include    []string
	Exclude    []string
	Files      []string
	References []string
}

// ResolvedConfig is a Config after its extends chain has been merged and
// its paths compiled, ready for matching and paths-resolution.
type ResolvedConfig struct {
	Config

	// PathsBase is the directory paths values are resolved against:
	// BaseURL if the (possibly inherited) config set one, else Dir.
	PathsBase string
	Paths     []PathPattern

	referencesMode ReferencesMode
	manualRefs     []string
	loadedRefs     []*ResolvedConfig
	rootDir        string
}

type rawTSConfig struct {
	Extends         json.RawMessage `json:"extends"`
	CompilerOptions struct {
		BaseURL  string              `json:"baseUrl"`
		Paths    map[string][]string `json:"paths"`
		RootDirs []string            `json:"rootDirs"`
		OutDir   string              `json:"outDir"`
	} `json:"compilerOptions"`
	Include    []string `json:"include"`
	Exclude    []string `json:"exclude"`
	Files      []string `json:"files"`
	References []struct {
		Path string `json:"path"`
	} `json:"references"`
}

// Parse parses raw tsconfig JSON (tolerating comments and trailing commas)
// rooted at configPath.
func Parse(configPath string, data []byte) (*Config, error) {
	clean := jsonc.ToJSON(data)

	var raw rawTSConfig
	if err := json.Unmarshal(clean, &raw); err != nil {
		return nil, &rerror.Error{Kind: rerror.JSON, Path: configPath, Wrapped: err}
	}

	cfg := &Config{
		Path:       configPath,
		Dir:        pathutil.Dirname(configPath),
		BaseURL:    raw.CompilerOptions.BaseURL,
		HasBaseURL: raw.CompilerOptions.BaseURL != "",
		RawPaths:   raw.CompilerOptions.Paths,
		RootDirs:   raw.CompilerOptions.RootDirs,
		OutDir:     raw.CompilerOptions.OutDir,
		Include:    raw.Include,
		Exclude:    raw.Exclude,
		Files:      raw.Files,
	}

	if len(raw.Extends) > 0 {
		var single string
		if err := json.Unmarshal(raw.Extends, &single); err == nil {
			cfg.Extends = []string{single}
		} else {
			var multi []string
			if err := json.Unmarshal(raw.Extends, &multi); err == nil {
				cfg.Extends = multi
			}
		}
	}

	for _, ref := range raw.References {
		cfg.References = append(cfg.References, ref.Path)
	}

	return cfg, nil
}

// configFileName resolves a loading hint (absolute file, directory, or
// stem) to a concrete tsconfig.json path to read.
func configFileName(filesystem fs.FileSystem, hint string) string {
	if strings.HasSuffix(hint, ".json") {
		return hint
	}
	if filesystem.Exists(hint) {
		if info, err := filesystem.Metadata(hint); err == nil && info.IsDir() {
			return pathutil.Join(hint, "tsconfig.json")
		}
	}
	return hint + ".json"
}

// extendResolver is the minimal filesystem-probing contract the loader
// needs to resolve a bare `extends` entry through node_modules; the full
// resolver package implements it, but tsconfig itself stays decoupled from
// resolver to avoid an import cycle (resolver depends on tsconfig, not the
// reverse).
type extendResolver interface {
	ResolveTsconfigExtends(fromDir, specifier string) (string, error)
}

// Loader loads and merges tsconfig files through their extends chain.
type Loader struct {
	fs       fs.FileSystem
	resolver extendResolver
	cache    map[string]*ResolvedConfig
}

// NewLoader constructs a Loader. resolver may be nil if bare `extends`
// specifiers (node_modules-style package lookups) are never used.
func NewLoader(filesystem fs.FileSystem, resolver extendResolver) *Loader {
	return &Loader{
		fs:       filesystem,
		resolver: resolver,
		cache:    make(map[string]*ResolvedConfig),
	}
}

// Load resolves hint to a tsconfig.json path, parses its extends chain, and
// returns a fully merged ResolvedConfig.
func (l *Loader) Load(hint string) (*ResolvedConfig, error) {
	path := configFileName(l.fs, hint)
	return l.load(path, nil, "")
}

// load parses and merges path's extends chain. rootDir is the directory of
// the config the caller originally asked for (empty on the outermost call,
// which then fixes rootDir to its own directory): every config in the chain
// shares this same rootDir when expanding "${configDir}" in paths values,
// since TypeScript replaces that template with the extending project's
// directory even inside an extended-from base config.
func (l *Loader) load(path string, stack []string, rootDir string) (*ResolvedConfig, error) {
	if cached, ok := l.cache[path]; ok {
		return cached, nil
	}

	for _, s := range stack {
		if s == path {
			chain := append(append([]string{}, stack...), path)
			return nil, &rerror.Error{Kind: rerror.TsconfigCircularExtend, Chain: chain}
		}
	}
	stack = append(stack, path)

	data, err := l.fs.ReadToString(path)
	if err != nil {
		var rerr *rerror.Error
		if rerror.As(err, &rerr) && rerr.Kind == rerror.NotFound {
			return nil, &rerror.Error{Kind: rerror.TsconfigNotFound, Path: path}
		}
		return nil, err
	}

	cfg, err := Parse(path, []byte(data))
	if err != nil {
		return nil, err
	}

	if rootDir == "" {
		rootDir = cfg.Dir
	}

	resolved := &ResolvedConfig{Config: *cfg, rootDir: rootDir}

	for i := len(cfg.Extends) - 1; i >= 0; i-- {
		extendEntry := cfg.Extends[i]
		parentPath, err := l.resolveExtendsEntry(cfg.Dir, extendEntry)
		if err != nil {
			return nil, err
		}
		parent, err := l.load(parentPath, stack, rootDir)
		if err != nil {
			return nil, err
		}
		resolved.mergeParent(parent)
	}

	resolved.compilePaths(cfg)
	l.cache[path] = resolved
	return resolved, nil
}

func (l *Loader) resolveExtendsEntry(fromDir, entry string) (string, error) {
	switch {
	case pathutil.IsRoot(entry):
		return configFileName(l.fs, entry), nil
	case strings.HasPrefix(entry, "./") || strings.HasPrefix(entry, "../"):
		return configFileName(l.fs, pathutil.NormaliseWith(fromDir, entry)), nil
	default:
		if l.resolver == nil {
			return "", &rerror.Error{Kind: rerror.TsconfigNotFound, Path: entry}
		}
		resolved, err := l.resolver.ResolveTsconfigExtends(fromDir, entry)
		if err != nil {
			var rerr *rerror.Error
			if rerror.As(err, &rerr) && rerr.Kind == rerror.NotFound {
				return "", &rerror.Error{Kind: rerror.TsconfigNotFound, Path: entry}
			}
			return "", err
		}
		return resolved, nil
	}
}

// mergeParent overlays parent's fields under resolved's own: a field is
// taken from parent only while resolved has not set it. load merges the
// parents in reverse cfg.Extends order, so the config's own fields win over
// every parent and a later extends entry's fields win over an earlier
// one's. resolved's own "paths" are compiled afterwards by compilePaths.
func (r *ResolvedConfig) mergeParent(parent *ResolvedConfig) {
	if !r.HasBaseURL && parent.HasBaseURL {
		r.BaseURL = parent.BaseURL
		r.HasBaseURL = true
	}
	if len(r.RawPaths) == 0 && len(parent.RawPaths) > 0 {
		r.RawPaths = parent.RawPaths
		r.PathsBase = parent.PathsBase
		r.Paths = parent.Paths
	}
	if len(r.RootDirs) == 0 {
		r.RootDirs = parent.RootDirs
	}
	if r.OutDir == "" {
		r.OutDir = parent.OutDir
	}
	if len(r.Include) == 0 {
		r.Include = parent.Include
	}
	if len(r.Exclude) == 0 {
		r.Exclude = parent.Exclude
	}
	if len(r.Files) == 0 {
		r.Files = parent.Files
	}
}

// compilePaths compiles cfg's own "paths" (if any) over whatever was
// inherited via mergeParent. A config that declares no "paths" of its own
// keeps the inherited Paths/PathsBase verbatim.
func (r *ResolvedConfig) compilePaths(cfg *Config) {
	if len(cfg.RawPaths) == 0 {
		if r.PathsBase == "" {
			r.PathsBase = r.effectivePathsBase()
		}
		return
	}

	base := r.effectivePathsBase()
	r.PathsBase = base
	r.Paths = nil

	for key, values := range cfg.RawPaths {
		pattern := compileKey(key)
		for _, v := range values {
			pattern.Targets = append(pattern.Targets, r.resolvePathsTarget(base, v))
		}
		r.Paths = append(r.Paths, pattern)
	}
}

// resolvePathsTarget expands a "${configDir}" template against r.rootDir
// before treating the result as already-rooted, or else joins v against
// base the ordinary relative-path way.
func (r *ResolvedConfig) resolvePathsTarget(base, v string) string {
	if strings.Contains(v, "${configDir}") {
		return pathutil.Normalise(ExpandConfigDirTemplate(v, r.rootDir))
	}
	return pathutil.NormaliseWith(base, v)
}

func (r *ResolvedConfig) effectivePathsBase() string {
	if r.HasBaseURL {
		return pathutil.NormaliseWith(r.Dir, r.BaseURL)
	}
	return r.Dir
}

func compileKey(key string) PathPattern {
	if strings.HasSuffix(key, "$") {
		return PathPattern{Kind: PathExact, Key: strings.TrimSuffix(key, "$")}
	}
	if idx := strings.IndexByte(key, '*'); idx >= 0 {
		return PathPattern{
			Kind:   PathWildcard,
			Key:    key,
			Prefix: key[:idx],
			Suffix: key[idx+1:],
		}
	}
	return PathPattern{Kind: PathPrefix, Key: key}
}

// MatchPaths returns the candidate absolute targets for specifier against
// the compiled paths table, trying an exact match first, then a
// non-wildcard key equal to specifier, then the matching wildcard pattern
// with the longest prefix. The table is compiled from a Go map, so the
// declaration order of the "paths" keys is not kept and plays no part in
// choosing among matching patterns (see DESIGN.md).
func (r *ResolvedConfig) MatchPaths(specifier string) []string {
	for _, p := range r.Paths {
		if p.Kind == PathExact && p.Key == specifier {
			return p.Targets
		}
	}
	for _, p := range r.Paths {
		if p.Kind == PathPrefix && p.Key == specifier {
			return p.Targets
		}
	}

	var bestMatch *PathPattern
	var bestCaptured string
	for i := range r.Paths {
		p := &r.Paths[i]
		if p.Kind != PathWildcard {
			continue
		}
		if !strings.HasPrefix(specifier, p.Prefix) || !strings.HasSuffix(specifier, p.Suffix) {
			continue
		}
		captured := specifier[len(p.Prefix) : len(specifier)-len(p.Suffix)]
		if bestMatch == nil || len(p.Prefix) > len(bestMatch.Prefix) {
			bestMatch = p
			bestCaptured = captured
		}
	}
	if bestMatch == nil {
		return nil
	}

	out := make([]string, len(bestMatch.Targets))
	for i, t := range bestMatch.Targets {
		out[i] = strings.ReplaceAll(t, "*", bestCaptured)
	}
	return out
}

// ConfigureReferences sets how r's project references are consumed.
func (r *ResolvedConfig) ConfigureReferences(mode ReferencesMode, manual []string) {
	r.referencesMode = mode
	r.manualRefs = manual
}

// LoadReferences returns the project references this config declares,
// honoring its ReferencesMode: Disabled returns nil, Paths returns the
// caller-supplied list (loaded lazily here), Auto loads cfg.References
// lazily on first call and caches the result.
func (l *Loader) LoadReferences(r *ResolvedConfig) ([]*ResolvedConfig, error) {
	if r.referencesMode == ReferencesDisabled {
		return nil, nil
	}
	if r.loadedRefs != nil {
		return r.loadedRefs, nil
	}

	refs := r.Config.References
	if r.referencesMode == ReferencesPaths {
		refs = r.manualRefs
	}

	for _, ref := range refs {
		refPath := configFileName(l.fs, pathutil.NormaliseWith(r.Dir, ref))
		if refPath == r.Path {
			return nil, &rerror.Error{Kind: rerror.TsconfigSelfReference, Path: refPath}
		}
		loaded, err := l.load(refPath, nil, "")
		if err != nil {
			return nil, err
		}
		r.loadedRefs = append(r.loadedRefs, loaded)
	}

	return r.loadedRefs, nil
}

// Matches reports whether absPath (relative to r's Dir) is included by r's
// files/include/exclude rules, per spec.md §4.5's matcher (files takes
// absolute precedence, then include/exclude, excludes always include
// node_modules/bower_components/jspm_packages plus outDir).
func (r *ResolvedConfig) Matches(absPath string) bool {
	rel := strings.TrimPrefix(strings.TrimPrefix(absPath, r.Dir), "/")

	for _, f := range r.Files {
		if pathutil.NormaliseWith(r.Dir, f) == absPath {
			return true
		}
	}

	excludes := append([]string{}, r.Exclude...)
	excludes = append(excludes, "node_modules", "bower_components", "jspm_packages")
	if r.OutDir != "" {
		excludes = append(excludes, r.OutDir)
	}
	for _, pattern := range excludes {
		if globMatch(expandPattern(pattern), rel) {
			return false
		}
	}

	includes := r.Include
	if len(includes) == 0 {
		if len(r.Files) > 0 {
			return false
		}
		includes = []string{"**/*"}
	}
	for _, pattern := range includes {
		if globMatch(expandPattern(pattern), rel) {
			return true
		}
	}
	return false
}

// expandPattern applies the bare-directory-name expansion rule: a pattern
// with no glob metacharacter and no file extension is treated as a
// directory root and expanded to match everything beneath it.
func expandPattern(pattern string) string {
	if strings.ContainsAny(pattern, "*?[") {
		return pattern
	}
	base := pattern[strings.LastIndexByte(pattern, '/')+1:]
	if strings.Contains(base, ".") {
		return pattern
	}
	return strings.TrimSuffix(pattern, "/") + "/**"
}

func globMatch(pattern, rel string) bool {
	ok, err := doublestar.Match(pattern, rel)
	return err == nil && ok
}

// ExpandConfigDirTemplate replaces "${configDir}" in value with rootDir,
// the directory of the root config after the extends chain has merged
// (spec.md §4.5).
func ExpandConfigDirTemplate(value, rootDir string) string {
	return strings.ReplaceAll(value, "${configDir}", rootDir)
}
