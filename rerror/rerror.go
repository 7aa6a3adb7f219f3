// Package rerror defines the typed error taxonomy shared by every resolver
// component. All failure modes are explicit values: nothing in this module
// panics, and "not found" is never confused with "I/O failure".
package rerror

import "fmt"

// Kind discriminates the possible ways a resolution can fail.
type Kind int

const (
	// Ignored marks a browser-field or alias mapping to false. It is a
	// recoverable non-success, not a true error: callers distinguish it
	// with IsIgnored and the fallback mechanism deliberately refuses to
	// recover from it.
	Ignored Kind = iota
	NotFound
	TsconfigNotFound
	Builtin
	ExtensionAlias
	Specifier
	JSON
	Restriction
	InvalidModuleSpecifier
	InvalidPackageTarget
	PackagePathNotExported
	InvalidPackageConfig
	InvalidPackageConfigDefault
	InvalidPackageConfigDirectory
	PackageImportNotDefined
	MatchedAliasNotFound
	Recursion
	TsconfigSelfReference
	TsconfigCircularExtend
	IOError
	PathNotSupported
)

var kindNames = map[Kind]string{
	Ignored:                       "Ignored",
	NotFound:                      "NotFound",
	TsconfigNotFound:              "TsconfigNotFound",
	Builtin:                       "Builtin",
	ExtensionAlias:                "ExtensionAlias",
	Specifier:                     "Specifier",
	JSON:                          "JSON",
	Restriction:                   "Restriction",
	InvalidModuleSpecifier:        "InvalidModuleSpecifier",
	InvalidPackageTarget:          "InvalidPackageTarget",
	PackagePathNotExported:        "PackagePathNotExported",
	InvalidPackageConfig:          "InvalidPackageConfig",
	InvalidPackageConfigDefault:   "InvalidPackageConfigDefault",
	InvalidPackageConfigDirectory: "InvalidPackageConfigDirectory",
	PackageImportNotDefined:       "PackageImportNotDefined",
	MatchedAliasNotFound:          "MatchedAliasNotFound",
	Recursion:                     "Recursion",
	TsconfigSelfReference:         "TsconfigSelfReference",
	TsconfigCircularExtend:        "TsconfigCircularExtend",
	IOError:                       "IOError",
	PathNotSupported:              "PathNotSupported",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is the single error type returned by every package in this module.
// Path and Request carry whichever of the request specifier or a resolved
// filesystem path is relevant to Kind; Attempted records filenames probed
// before giving up, used by NotFound and ExtensionAlias; Chain records a
// cycle for TsconfigCircularExtend; Wrapped carries an underlying I/O error.
type Error struct {
	Kind       Kind
	Path       string
	Request    string
	Key        string
	Attempted  []string
	Chain      []string
	Wrapped    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Ignored:
		return fmt.Sprintf("ignored: %s", e.Path)
	case NotFound:
		return fmt.Sprintf("not found: %s", e.Request)
	case TsconfigNotFound:
		return fmt.Sprintf("tsconfig not found: %s", e.Path)
	case Builtin:
		return fmt.Sprintf("builtin module: %s", e.Request)
	case ExtensionAlias:
		return fmt.Sprintf("extension alias exhausted for %s in %s, attempted %v", e.Request, e.Path, e.Attempted)
	case Specifier:
		return fmt.Sprintf("invalid specifier: %s", e.Request)
	case JSON:
		return fmt.Sprintf("json error in %s: %v", e.Path, e.Wrapped)
	case Restriction:
		return fmt.Sprintf("path %s violates restrictions", e.Path)
	case MatchedAliasNotFound:
		return fmt.Sprintf("alias key %q matched %s but no target resolved", e.Key, e.Request)
	case Recursion:
		return fmt.Sprintf("recursion depth exceeded resolving %s", e.Request)
	case TsconfigSelfReference:
		return fmt.Sprintf("tsconfig references itself: %s", e.Path)
	case TsconfigCircularExtend:
		return fmt.Sprintf("tsconfig extends cycle: %v", e.Chain)
	case IOError:
		return fmt.Sprintf("io error on %s: %v", e.Path, e.Wrapped)
	case PathNotSupported:
		return fmt.Sprintf("path not supported: %s", e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
}

func (e *Error) Unwrap() error { return e.Wrapped }

// IsIgnored reports whether err is an *Error of Kind Ignored. Unlike every
// other Kind, Ignored is not a true failure and should not abort a fallback
// chain on its own.
func IsIgnored(err error) bool {
	var e *Error
	return As(err, &e) && e.Kind == Ignored
}

// As mirrors errors.As for *Error without importing the errors package
// twice at call sites that already alias it; kept trivial on purpose.
func As(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}

// New constructs an *Error of the given kind with a request/path identifier.
func New(kind Kind, path string) *Error {
	return &Error{Kind: kind, Path: path}
}

// Newf constructs an *Error carrying both a governing path and the original
// request specifier.
func Newf(kind Kind, path, request string) *Error {
	return &Error{Kind: kind, Path: path, Request: request}
}

// Wrap constructs an IOError Kind wrapping a lower-level error.
func Wrap(path string, err error) *Error {
	return &Error{Kind: IOError, Path: path, Wrapped: err}
}
