// Package pathgraph implements the cached, interned tree of filesystem
// nodes the resolver consults for metadata, canonicalisation, nearest
// node_modules, and nearest package.json lookups, so repeated resolutions
// in the same directory never re-stat the same path twice.
package pathgraph

import (
	iofs "io/fs"
	"strings"
	"sync"

	"github.com/modresolve/resolver/fs"
	"github.com/modresolve/resolver/internal/pathutil"
	"github.com/modresolve/resolver/packagejson"
	"github.com/modresolve/resolver/rerror"
)

// FileMetadata is the cached, three-way classification of a path.
type FileMetadata struct {
	IsFile    bool
	IsDir     bool
	IsSymlink bool
}

// CachedPath is an interned node in the path graph. It is never mutated
// after a lazy slot has been set; concurrent readers share the same
// pointer safely.
type CachedPath struct {
	Path               string
	Parent             *CachedPath
	IsNodeModules      bool
	InsideNodeModules  bool

	metaOnce sync.Once
	meta     *FileMetadata
	metaErr  error

	canonOnce     sync.Once
	canonicalNode *CachedPath
	canonErr      error

	pkgOnce sync.Once
	pkg     *packagejson.PackageJSON
	pkgErr  error

	nodeModulesOnce  sync.Once
	nodeModulesChild *CachedPath

	nearestPkgOnce sync.Once
	nearestPkg     *packagejson.PackageJSON
	nearestPkgPath *CachedPath
	nearestPkgErr  error
}

// Cache interns CachedPath nodes by absolute path string, generation by
// generation. Clearing the cache swaps to a fresh generation in O(1):
// outstanding handles from the old generation keep a strong reference to
// their own nodes (via normal Go GC) and stay readable, while new lookups
// populate the new generation's map.
type Cache struct {
	fs fs.FileSystem

	mu         sync.RWMutex
	generation *generation
}

type generation struct {
	mu    sync.RWMutex
	nodes map[string]*CachedPath
}

// NewCache constructs a path-graph cache backed by filesystem.
func NewCache(filesystem fs.FileSystem) *Cache {
	return &Cache{
		fs:         filesystem,
		generation: &generation{nodes: make(map[string]*CachedPath)},
	}
}

// Clear swaps to a fresh, empty generation. Existing *CachedPath handles
// obtained before Clear remain valid and readable; they simply no longer
// appear in lookups against the new generation.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation = &generation{nodes: make(map[string]*CachedPath)}
}

// Value interns path, recursively interning its parent first, and returns
// the shared node for it. Calling Value twice with the same path string
// within the same generation returns the identical pointer.
func (c *Cache) Value(path string) *CachedPath {
	path = pathutil.Normalise(path)

	c.mu.RLock()
	gen := c.generation
	c.mu.RUnlock()

	gen.mu.RLock()
	if node, ok := gen.nodes[path]; ok {
		gen.mu.RUnlock()
		return node
	}
	gen.mu.RUnlock()

	var parent *CachedPath
	parentPath := pathutil.Dirname(path)
	if parentPath != path {
		parent = c.valueInGeneration(gen, parentPath)
	}

	base := pathutil.Basename(path)
	node := &CachedPath{
		Path:          path,
		Parent:        parent,
		IsNodeModules: base == "node_modules",
	}
	node.InsideNodeModules = node.IsNodeModules || (parent != nil && parent.InsideNodeModules)

	gen.mu.Lock()
	if existing, ok := gen.nodes[path]; ok {
		gen.mu.Unlock()
		return existing
	}
	gen.nodes[path] = node
	gen.mu.Unlock()

	return node
}

func (c *Cache) valueInGeneration(gen *generation, path string) *CachedPath {
	gen.mu.RLock()
	if node, ok := gen.nodes[path]; ok {
		gen.mu.RUnlock()
		return node
	}
	gen.mu.RUnlock()

	var parent *CachedPath
	parentPath := pathutil.Dirname(path)
	if parentPath != path {
		parent = c.valueInGeneration(gen, parentPath)
	}

	base := pathutil.Basename(path)
	node := &CachedPath{
		Path:          path,
		Parent:        parent,
		IsNodeModules: base == "node_modules",
	}
	node.InsideNodeModules = node.IsNodeModules || (parent != nil && parent.InsideNodeModules)

	gen.mu.Lock()
	if existing, ok := gen.nodes[path]; ok {
		gen.mu.Unlock()
		return existing
	}
	gen.nodes[path] = node
	gen.mu.Unlock()
	return node
}

// Metadata lazily stats n.Path, caching both the positive and negative
// case so repeated probes of a nonexistent path don't re-hit the
// filesystem collaborator.
func (n *CachedPath) Metadata(filesystem fs.FileSystem) (*FileMetadata, error) {
	n.metaOnce.Do(func() {
		info, err := filesystem.SymlinkMetadata(n.Path)
		if err != nil {
			n.metaErr = err
			return
		}
		n.meta = &FileMetadata{
			IsFile:    info.Mode().IsRegular(),
			IsDir:     info.IsDir(),
			IsSymlink: info.Mode()&iofs.ModeSymlink != 0,
		}
	})
	return n.meta, n.metaErr
}

// Canonicalise resolves n through any symlinks in its own path or its
// ancestors, returning the node of the real underlying file. The root of
// the chain (nil parent) canonicalises to itself. Concurrent callers on
// the same node block on the same sync.Once; a symlink chain that revisits
// a node already being canonicalised on the current call stack reports a
// circular-symlink IOError rather than recursing forever.
func (n *CachedPath) Canonicalise(cache *Cache, filesystem fs.FileSystem) (*CachedPath, error) {
	n.canonOnce.Do(func() {
		n.canonicalNode, n.canonErr = n.canonicaliseInner(cache, filesystem, map[*CachedPath]bool{})
	})
	return n.canonicalNode, n.canonErr
}

func (n *CachedPath) canonicaliseInner(cache *Cache, filesystem fs.FileSystem, visiting map[*CachedPath]bool) (*CachedPath, error) {
	if visiting[n] {
		return nil, &rerror.Error{Kind: rerror.IOError, Path: n.Path, Wrapped: errCircularSymlink}
	}
	visiting[n] = true
	defer delete(visiting, n)

	if n.Parent == nil {
		return n, nil
	}

	canonicalParent, err := n.Parent.canonicaliseInner(cache, filesystem, visiting)
	if err != nil {
		return nil, err
	}

	rejoined := pathutil.Join(canonicalParent.Path, pathutil.Basename(n.Path))
	rejoinedNode := cache.Value(rejoined)

	meta, err := rejoinedNode.Metadata(filesystem)
	if err != nil {
		var rerr *rerror.Error
		if rerror.As(err, &rerr) && rerr.Kind == rerror.NotFound {
			return rejoinedNode, nil
		}
		return nil, err
	}
	if !meta.IsSymlink {
		return rejoinedNode, nil
	}

	target, err := filesystem.ReadLink(rejoinedNode.Path)
	if err != nil {
		return nil, err
	}

	var linkTarget string
	if pathutil.IsRoot(target) {
		linkTarget = pathutil.Normalise(target)
	} else {
		linkTarget = pathutil.NormaliseWith(pathutil.Dirname(rejoinedNode.Path), target)
	}

	linkNode := cache.Value(linkTarget)
	return linkNode.canonicaliseInner(cache, filesystem, visiting)
}

var errCircularSymlink = circularSymlinkError{}

type circularSymlinkError struct{}

func (circularSymlinkError) Error() string { return "circular symlink" }

// PackageJSON lazily loads and caches the descriptor file that lives
// directly inside n (n is treated as a directory), trying each name in
// descriptionFiles in order and keeping the first one found. An empty
// descriptionFiles falls back to the conventional "package.json".
func (n *CachedPath) PackageJSON(filesystem fs.FileSystem, descriptionFiles []string) (*packagejson.PackageJSON, error) {
	n.pkgOnce.Do(func() {
		for _, name := range descriptorNames(descriptionFiles) {
			pkgPath := pathutil.Join(n.Path, name)
			pkg, err := packagejson.ParseFile(filesystem, pkgPath)
			if err == nil {
				n.pkg = pkg
				n.pkgErr = nil
				return
			}
			n.pkgErr = err
		}
	})
	return n.pkg, n.pkgErr
}

func descriptorNames(descriptionFiles []string) []string {
	if len(descriptionFiles) == 0 {
		return []string{"package.json"}
	}
	return descriptionFiles
}

// CachedNodeModules returns n's child "node_modules" node if that
// directory exists, memoising both the hit and miss case.
func (n *CachedPath) CachedNodeModules(cache *Cache, filesystem fs.FileSystem) *CachedPath {
	n.nodeModulesOnce.Do(func() {
		candidate := cache.Value(pathutil.Join(n.Path, "node_modules"))
		meta, err := candidate.Metadata(filesystem)
		if err == nil && meta.IsDir {
			n.nodeModulesChild = candidate
		}
	})
	return n.nodeModulesChild
}

// FindPackageJSON walks n's ancestors (starting at n itself) and returns
// the first node whose directory contains one of descriptionFiles (tried in
// order at each ancestor). The result is memoised on n so repeated lookups
// from the same starting directory don't re-walk or re-stat the chain.
func (n *CachedPath) FindPackageJSON(cache *Cache, filesystem fs.FileSystem, descriptionFiles []string) (*CachedPath, *packagejson.PackageJSON, error) {
	n.nearestPkgOnce.Do(func() {
		for cur := n; cur != nil; cur = cur.Parent {
			for _, name := range descriptorNames(descriptionFiles) {
				pkgPath := pathutil.Join(cur.Path, name)
				pkgNode := cache.Value(pkgPath)
				meta, err := pkgNode.Metadata(filesystem)
				if err != nil || !meta.IsFile {
					continue
				}
				pkg, err := cur.PackageJSON(filesystem, descriptionFiles)
				if err != nil {
					n.nearestPkgErr = err
					return
				}
				n.nearestPkgPath = cur
				n.nearestPkg = pkg
				return
			}
		}
	})
	return n.nearestPkgPath, n.nearestPkg, n.nearestPkgErr
}

// InsideNodeModulesPath reports whether p contains a path component named
// "node_modules" (case-sensitively, matching Node's own convention).
func InsideNodeModulesPath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "node_modules" {
			return true
		}
	}
	return false
}
