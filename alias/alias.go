/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package alias implements the alias/fallback rewrite engine, extension
// probing, and extension-alias handling (webpack's enhanced-resolve
// AliasPlugin and ExtensionAliasPlugin, adapted to this resolver's cached
// path graph). It only computes candidate rewrites; the recursive re-entry
// into the dispatcher, and the decision of which candidate's error is
// recoverable, belong to the resolver package that drives it.
package alias

import (
	"strings"

	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/internal/pathutil"
	"github.com/modresolve/resolver/pathgraph"
	"github.com/modresolve/resolver/rerror"
)

// MatchKind classifies how an alias key is matched against a specifier.
type MatchKind int

const (
	// MatchExact requires the specifier to equal the key verbatim (key had
	// a trailing "$" in configuration).
	MatchExact MatchKind = iota
	// MatchPrefix requires the specifier to start with the key, at a path
	// segment boundary.
	MatchPrefix
	// MatchWildcard requires the specifier to match prefix*suffix, where
	// key contained exactly one "*".
	MatchWildcard
)

// TargetKind distinguishes a rewrite target from an explicit ignore marker.
type TargetKind int

const (
	TargetPath TargetKind = iota
	TargetIgnore
)

// Target is one of an alias key's ordered values.
type Target struct {
	Kind TargetKind
	Path string
}

// RawEntry is an (key, targets) pair as configured by the caller, in
// declaration order, before key classification.
type RawEntry struct {
	Key     string
	Targets []Target
}

// Entry is a RawEntry after its key has been classified into a MatchKind.
type Entry struct {
	Key            string
	Kind           MatchKind
	WildcardPrefix string
	WildcardSuffix string
	Targets        []Target
}

// Compile classifies each raw entry's key exactly once, up front, so
// Resolve never has to re-parse a key on every call.
func Compile(entries []RawEntry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		key := e.Key
		kind := MatchPrefix
		var prefix, suffix string
		switch {
		case strings.HasSuffix(key, "$"):
			key = strings.TrimSuffix(key, "$")
			kind = MatchExact
		default:
			if i := strings.IndexByte(key, '*'); i != -1 {
				kind = MatchWildcard
				prefix, suffix = key[:i], key[i+1:]
			}
		}
		out = append(out, Entry{
			Key:            key,
			Kind:           kind,
			WildcardPrefix: prefix,
			WildcardSuffix: suffix,
			Targets:        e.Targets,
		})
	}
	return out
}

// Candidate is one rewrite attempt produced by a matched alias key.
type Candidate struct {
	// Ignore is true when the target was the Ignore marker: the caller
	// should fail with a Kind Ignored error carrying the joined path,
	// rather than attempt any further candidate or fall through.
	Ignore bool
	// Specifier is the rewritten specifier to re-enter the dispatcher
	// with, valid when Ignore is false.
	Specifier string
}

// Match is the result of the first alias key (in declaration order) that
// produced at least one non-empty candidate list.
type Match struct {
	AliasKey   string
	Candidates []Candidate
}

// Resolve scans entries in declaration order and returns the first key
// whose match kind matches specifier and whose targets produce at least
// one candidate. A key whose targets all turn out to be no-ops (the
// request already equals the computed value) is skipped entirely, exactly
// as if it had not matched, so that a later, more specific key still gets
// a chance. Returns (nil, nil) when no key applies.
func Resolve(entries []Entry, cache *pathgraph.Cache, filesystem fs.FileSystem, specifier string) (*Match, error) {
	for _, e := range entries {
		if !keyMatches(e, specifier) {
			continue
		}

		var candidates []Candidate
		for _, t := range e.Targets {
			if t.Kind == TargetIgnore {
				candidates = append(candidates, Candidate{Ignore: true})
				continue
			}
			rewritten, ok, err := computeCandidate(cache, filesystem, e, t.Path, specifier)
			if err != nil {
				return nil, err
			}
			if ok {
				candidates = append(candidates, Candidate{Specifier: rewritten})
			}
		}

		if len(candidates) > 0 {
			return &Match{AliasKey: e.Key, Candidates: candidates}, nil
		}
	}
	return nil, nil
}

func keyMatches(e Entry, specifier string) bool {
	switch e.Kind {
	case MatchExact:
		return e.Key == specifier
	case MatchWildcard:
		if len(specifier) < len(e.WildcardPrefix)+len(e.WildcardSuffix) {
			return false
		}
		return strings.HasPrefix(specifier, e.WildcardPrefix) && strings.HasSuffix(specifier, e.WildcardSuffix)
	default: // MatchPrefix
		if !strings.HasPrefix(specifier, e.Key) {
			return false
		}
		return len(specifier) == len(e.Key) || strings.HasSuffix(e.Key, "/") || specifier[len(e.Key)] == '/'
	}
}

// computeCandidate ports oxc-resolver's load_alias_value: it guards
// against a no-op rewrite (the request is already the alias value, or
// already the alias value plus a subpath), then branches on match kind to
// either substitute the wildcard capture or, for exact/prefix matches,
// decide whether the alias value is a file (tail discarded) or a
// directory (tail appended).
func computeCandidate(cache *pathgraph.Cache, filesystem fs.FileSystem, e Entry, aliasValue, request string) (string, bool, error) {
	if request == aliasValue {
		return "", false, nil
	}
	if tail, ok := strings.CutPrefix(request, aliasValue); ok && strings.HasPrefix(tail, "/") {
		return "", false, nil
	}

	if e.Kind == MatchWildcard {
		captured, ok := strings.CutPrefix(request, e.WildcardPrefix)
		if !ok {
			return "", false, nil
		}
		captured, ok = strings.CutSuffix(captured, e.WildcardSuffix)
		if !ok {
			return "", false, nil
		}
		if strings.Contains(aliasValue, "*") {
			return strings.Replace(aliasValue, "*", captured, 1), true, nil
		}
		return aliasValue, true, nil
	}

	tail := request[len(e.Key):]
	if tail == "" {
		return aliasValue, true, nil
	}

	aliasPath := pathutil.Normalise(aliasValue)
	node := cache.Value(aliasPath)
	if meta, err := node.Metadata(filesystem); err == nil && meta.IsFile {
		// The alias value names a file outright; nothing can be appended.
		return "", false, nil
	}

	tail = strings.TrimPrefix(tail, "/")
	if tail == "" {
		return aliasValue, true, nil
	}
	return pathutil.NormaliseWith(aliasPath, tail), true, nil
}

// ProbeExtensions appends each extension in order to basePath and returns
// the first candidate that exists as a file. An empty string in
// extensions probes basePath itself, used to permit extensionless files
// when the caller has disabled enforce_extension.
func ProbeExtensions(cache *pathgraph.Cache, filesystem fs.FileSystem, basePath string, extensions []string) (string, bool) {
	for _, ext := range extensions {
		candidate := basePath + ext
		node := cache.Value(candidate)
		if meta, err := node.Metadata(filesystem); err == nil && meta.IsFile {
			return candidate, true
		}
	}
	return "", false
}

// ExtensionAliasResult is the outcome of ResolveExtensionAlias.
type ExtensionAliasResult struct {
	// Path is the resolved aliased-extension candidate, set when Matched.
	Path string
	// Matched is true when one of the aliased extensions resolved to a
	// real file.
	Matched bool
}

// ResolveExtensionAlias implements extension_alias: basePath is the full
// specifier-derived path including its original extension ext; aliasedExts
// is the configured replacement list for ext. Each aliased extension is
// probed, fully specified, against basePath's bare stem. If none resolve
// and the original basePath also doesn't exist as a file, the caller
// should report an ExtensionAlias error listing every attempted filename.
// If the original file DOES exist, the zero ExtensionAliasResult is
// returned with a nil error so the caller can silently fall through to its
// own directory-resolution logic.
func ResolveExtensionAlias(cache *pathgraph.Cache, filesystem fs.FileSystem, basePath, ext string, aliasedExts []string) (ExtensionAliasResult, error) {
	stem := strings.TrimSuffix(basePath, ext)
	attempted := make([]string, 0, len(aliasedExts))
	for _, aliasExt := range aliasedExts {
		candidate := stem + aliasExt
		attempted = append(attempted, candidate)
		node := cache.Value(candidate)
		if meta, err := node.Metadata(filesystem); err == nil && meta.IsFile {
			return ExtensionAliasResult{Path: candidate, Matched: true}, nil
		}
	}

	origNode := cache.Value(basePath)
	if meta, err := origNode.Metadata(filesystem); err == nil && meta.IsFile {
		return ExtensionAliasResult{}, nil
	}

	return ExtensionAliasResult{}, &rerror.Error{Kind: rerror.ExtensionAlias, Path: basePath, Request: ext, Attempted: attempted}
}
