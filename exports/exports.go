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

// Package exports implements Node's conditional exports/imports matching:
// PACKAGE_EXPORTS_RESOLVE, PACKAGE_IMPORTS_RESOLVE,
// PACKAGE_IMPORTS_EXPORTS_RESOLVE and PACKAGE_TARGET_RESOLVE. Unlike the
// simpler map[string]any decode packagejson uses for its own legacy
// accessors, this package re-parses the "exports"/"imports" field with
// gjson so that condition objects keep their declaration order, since
// first-match-wins among conditions depends on it.
package exports

import (
	"errors"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/modresolve/resolver/internal/pathutil"
	"github.com/modresolve/resolver/rerror"
)

// Kind is the JSON shape of an exports/imports entry or target.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindArray
	KindObject
	KindInvalid
)

// Entry is a parsed node of the exports/imports tree, preserving object
// key order.
type Entry struct {
	Kind Kind
	Str  string
	Arr  []Entry
	Obj  []ObjEntry
}

// ObjEntry is one key/value pair of an Entry of KindObject, in the order
// it appeared in the source document.
type ObjEntry struct {
	Key   string
	Value Entry
}

func (e Entry) get(key string) (Entry, bool) {
	for _, o := range e.Obj {
		if o.Key == key {
			return o.Value, true
		}
	}
	return Entry{}, false
}

// startsWithDotOrHash reports whether the first key of an object entry
// addresses a subpath ("." or "./...") or an import specifier ("#...").
// An exports/imports object must be entirely keyed this way or entirely
// keyed by condition names; Node treats the first key as deciding which.
func startsWithDotOrHash(e Entry) bool {
	if len(e.Obj) == 0 {
		return false
	}
	return isSubpathKey(e.Obj[0].Key)
}

func isSubpathKey(key string) bool {
	return strings.HasPrefix(key, ".") || strings.HasPrefix(key, "#")
}

// validateNoMixedKeys enforces that an exports/imports object does not mix
// subpath keys with condition keys, and that "default", if present, is the
// last condition in the object.
func validateNoMixedKeys(e Entry, packageURL string) error {
	if e.Kind != KindObject || len(e.Obj) == 0 {
		return nil
	}
	mixedSubpath, mixedCondition := false, false
	defaultIdx := -1
	for i, entry := range e.Obj {
		if isSubpathKey(entry.Key) {
			mixedSubpath = true
		} else {
			mixedCondition = true
			if entry.Key == "default" {
				defaultIdx = i
			}
		}
	}
	if mixedSubpath && mixedCondition {
		return rerror.New(rerror.InvalidPackageConfig, packageURL)
	}
	if defaultIdx != -1 && defaultIdx != len(e.Obj)-1 {
		return rerror.New(rerror.InvalidPackageConfig, packageURL)
	}
	return nil
}

func parseEntry(r gjson.Result) Entry {
	switch {
	case r.Type == gjson.Null:
		return Entry{Kind: KindNull}
	case r.Type == gjson.String:
		return Entry{Kind: KindString, Str: r.String()}
	case r.IsArray():
		var arr []Entry
		r.ForEach(func(_, v gjson.Result) bool {
			arr = append(arr, parseEntry(v))
			return true
		})
		return Entry{Kind: KindArray, Arr: arr}
	case r.IsObject():
		var obj []ObjEntry
		r.ForEach(func(k, v gjson.Result) bool {
			obj = append(obj, ObjEntry{Key: k.String(), Value: parseEntry(v)})
			return true
		})
		return Entry{Kind: KindObject, Obj: obj}
	default:
		return Entry{Kind: KindInvalid}
	}
}

// ParseField re-reads field ("exports" or "imports") out of a package.json
// document's raw bytes, returning false if the field is absent.
func ParseField(packageJSON []byte, field string) (Entry, bool) {
	r := gjson.GetBytes(packageJSON, field)
	if !r.Exists() {
		return Entry{}, false
	}
	return parseEntry(r), true
}

// errNoMatch marks "no condition in this object matched", which is only
// ever terminal at the top of the match chain; every intermediate caller
// either substitutes the next candidate or converts it to a taxonomy error.
var errNoMatch = errors.New("no matching export condition")

func containsCondition(conditions []string, name string) bool {
	for _, c := range conditions {
		if c == name {
			return true
		}
	}
	return false
}

// ResolveExports resolves subpath (either "." for the main export, or
// "./foo") against a package's "exports" field using conditions in
// caller-declared priority order. hasQueryOrFragment must be true when the
// original request carried a "?" or "#" suffix, so the main-export special
// case can fail over to legacy main-field resolution.
func ResolveExports(packageURL string, exportsEntry Entry, subpath string, conditions []string, hasQueryOrFragment bool) (string, error) {
	if exportsEntry.Kind == KindInvalid {
		return "", rerror.New(rerror.InvalidPackageConfig, packageURL)
	}
	if err := validateNoMixedKeys(exportsEntry, packageURL); err != nil {
		return "", err
	}

	if subpath == "." {
		if hasQueryOrFragment {
			return "", rerror.New(rerror.PackagePathNotExported, packageURL)
		}
		mainExport := Entry{Kind: KindNull}
		switch {
		case exportsEntry.Kind == KindString, exportsEntry.Kind == KindArray:
			mainExport = exportsEntry
		case exportsEntry.Kind == KindObject && !startsWithDotOrHash(exportsEntry):
			mainExport = exportsEntry
		case exportsEntry.Kind == KindObject:
			if dot, ok := exportsEntry.get("."); ok {
				mainExport = dot
			}
		}
		if mainExport.Kind == KindNull {
			return "", rerror.New(rerror.PackagePathNotExported, packageURL)
		}
		resolved, bare, err := resolveTarget(packageURL, mainExport, "", false, conditions, false)
		if err != nil {
			return "", exportsTerminalError(packageURL, err)
		}
		if bare != "" {
			return "", rerror.New(rerror.InvalidPackageTarget, packageURL)
		}
		return resolved, nil
	}

	if exportsEntry.Kind != KindObject || !startsWithDotOrHash(exportsEntry) {
		return "", rerror.New(rerror.PackagePathNotExported, packageURL)
	}

	resolved, bare, err := resolveMatchKey(subpath, exportsEntry, packageURL, conditions, false)
	if err != nil {
		return "", exportsTerminalError(packageURL, err)
	}
	if bare != "" {
		return "", rerror.New(rerror.InvalidPackageTarget, packageURL)
	}
	return resolved, nil
}

func exportsTerminalError(packageURL string, err error) error {
	if errors.Is(err, errNoMatch) {
		return rerror.New(rerror.PackagePathNotExported, packageURL)
	}
	return err
}

// ResolveImports resolves a "#"-prefixed import specifier against a
// package's "imports" field. When the matched target is a bare specifier
// (not "./"-relative), it is returned via bareSpecifier rather than
// resolved here: only the dispatcher that owns node_modules traversal can
// recursively resolve a package name.
func ResolveImports(packageURL string, importsEntry Entry, specifier string, conditions []string) (resolved string, bareSpecifier string, err error) {
	if specifier == "#" || strings.HasPrefix(specifier, "#/") {
		return "", "", rerror.New(rerror.InvalidModuleSpecifier, packageURL)
	}
	if importsEntry.Kind != KindObject {
		return "", "", rerror.New(rerror.PackageImportNotDefined, packageURL)
	}
	if err := validateNoMixedKeys(importsEntry, packageURL); err != nil {
		return "", "", err
	}

	resolved, bareSpecifier, err = resolveMatchKey(specifier, importsEntry, packageURL, conditions, true)
	if err != nil {
		if errors.Is(err, errNoMatch) {
			return "", "", rerror.New(rerror.PackageImportNotDefined, packageURL)
		}
		return "", "", err
	}
	return resolved, bareSpecifier, nil
}

// resolveMatchKey implements PACKAGE_IMPORTS_EXPORTS_RESOLVE: an exact key
// match, then pattern keys containing exactly one "*" ordered by
// PATTERN_KEY_COMPARE, then directory keys ending in "/" ordered by length.
func resolveMatchKey(matchKey string, matchObj Entry, packageURL string, conditions []string, isImports bool) (string, string, error) {
	if !strings.Contains(matchKey, "*") {
		if target, ok := matchObj.get(matchKey); ok {
			return resolveTarget(packageURL, target, "", false, conditions, isImports)
		}
	}

	var patternKeys, dirKeys []ObjEntry
	for _, e := range matchObj.Obj {
		switch {
		case strings.Count(e.Key, "*") == 1:
			patternKeys = append(patternKeys, e)
		case strings.HasSuffix(e.Key, "/"):
			dirKeys = append(dirKeys, e)
		}
	}

	sort.SliceStable(patternKeys, func(i, j int) bool {
		return patternKeyLess(patternKeys[i].Key, patternKeys[j].Key)
	})
	for _, e := range patternKeys {
		star := strings.IndexByte(e.Key, '*')
		base, tail := e.Key[:star], e.Key[star+1:]
		if len(matchKey) < len(base)+len(tail) {
			continue
		}
		if !strings.HasPrefix(matchKey, base) || !strings.HasSuffix(matchKey, tail) {
			continue
		}
		if matchKey == e.Key {
			continue
		}
		captured := matchKey[len(base) : len(matchKey)-len(tail)]
		return resolveTarget(packageURL, e.Value, captured, true, conditions, isImports)
	}

	sort.SliceStable(dirKeys, func(i, j int) bool {
		return len(dirKeys[i].Key) > len(dirKeys[j].Key)
	})
	for _, e := range dirKeys {
		if strings.HasPrefix(matchKey, e.Key) {
			subpath := matchKey[len(e.Key):]
			return resolveTarget(packageURL, e.Value, subpath, false, conditions, isImports)
		}
	}

	return "", "", errNoMatch
}

// patternKeyLess implements PATTERN_KEY_COMPARE: longer base (text before
// the "*") first; among equal bases, a non-pattern key before a pattern
// key; among equal bases and pattern-ness, the longer key wins.
func patternKeyLess(a, b string) bool {
	baseA := baseLength(a)
	baseB := baseLength(b)
	if baseA != baseB {
		return baseA > baseB
	}
	hasStarA := strings.Contains(a, "*")
	hasStarB := strings.Contains(b, "*")
	if hasStarA != hasStarB {
		return !hasStarA
	}
	return len(a) > len(b)
}

func baseLength(key string) int {
	if i := strings.IndexByte(key, '*'); i != -1 {
		return i
	}
	return len(key)
}

// resolveTarget implements PACKAGE_TARGET_RESOLVE.
func resolveTarget(packageURL string, target Entry, subpath string, pattern bool, conditions []string, isImports bool) (string, string, error) {
	switch target.Kind {
	case KindString:
		return resolveStringTarget(packageURL, target.Str, subpath, pattern, isImports)

	case KindObject:
		if startsWithDotOrHash(target) {
			return "", "", rerror.New(rerror.InvalidPackageConfig, packageURL)
		}
		for _, e := range target.Obj {
			if e.Key == "default" || containsCondition(conditions, e.Key) {
				resolved, bare, err := resolveTarget(packageURL, e.Value, subpath, pattern, conditions, isImports)
				if err != nil {
					if errors.Is(err, errNoMatch) {
						continue
					}
					return "", "", err
				}
				return resolved, bare, nil
			}
		}
		return "", "", errNoMatch

	case KindArray:
		if len(target.Arr) == 0 {
			return "", "", errNoMatch
		}
		lastErr := errNoMatch
		for _, item := range target.Arr {
			resolved, bare, err := resolveTarget(packageURL, item, subpath, pattern, conditions, isImports)
			if err != nil {
				var rerr *rerror.Error
				if errors.Is(err, errNoMatch) || (rerror.As(err, &rerr) && rerr.Kind == rerror.InvalidPackageTarget) {
					lastErr = err
					continue
				}
				return "", "", err
			}
			return resolved, bare, nil
		}
		return "", "", lastErr

	case KindNull:
		return "", "", errNoMatch

	default:
		return "", "", rerror.New(rerror.InvalidPackageTarget, packageURL)
	}
}

// hasInvalidSegment reports whether subpath, split on "/", contains any
// ".", ".." or "node_modules" segment. Unlike pathutil.IsInvalidExportsTarget
// (which exempts a target's leading "." in "./foo"), every segment of a
// matched subpath is checked, since a subpath never starts with "./".
func hasInvalidSegment(subpath string) bool {
	if subpath == "" {
		return false
	}
	for _, seg := range strings.Split(subpath, "/") {
		if seg == "." || seg == ".." || strings.EqualFold(seg, "node_modules") {
			return true
		}
	}
	return false
}

func resolveStringTarget(packageURL, target, subpath string, pattern, isImports bool) (string, string, error) {
	if !strings.HasPrefix(target, "./") {
		if !isImports {
			return "", "", &rerror.Error{Kind: rerror.InvalidPackageTarget, Path: packageURL, Request: target}
		}
		// A bare target is only meaningful for imports, where it maps a
		// private specifier onto a real dependency; the dispatcher
		// re-resolves it as an ordinary bare specifier.
		if pattern {
			return "", strings.ReplaceAll(target, "*", subpath), nil
		}
		if subpath != "" && !strings.HasSuffix(target, "/") {
			return "", "", &rerror.Error{Kind: rerror.InvalidModuleSpecifier, Path: packageURL, Request: target}
		}
		return "", target + subpath, nil
	}

	if !pattern && subpath != "" && !strings.HasSuffix(target, "/") {
		return "", "", &rerror.Error{Kind: rerror.InvalidModuleSpecifier, Path: packageURL, Request: target}
	}
	if pathutil.IsInvalidExportsTarget(target) {
		return "", "", &rerror.Error{Kind: rerror.InvalidPackageTarget, Path: packageURL, Request: target}
	}
	if hasInvalidSegment(subpath) {
		return "", "", &rerror.Error{Kind: rerror.InvalidModuleSpecifier, Path: packageURL, Request: subpath}
	}

	resolvedTarget := pathutil.NormaliseWith(packageURL, target)
	if pattern {
		return strings.ReplaceAll(resolvedTarget, "*", subpath), "", nil
	}
	return pathutil.NormaliseWith(resolvedTarget, subpath), "", nil
}
