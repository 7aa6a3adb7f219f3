package pathgraph_test

import (
	"testing"

	"github.com/modresolve/resolver/fs/memfs"
	"github.com/modresolve/resolver/pathgraph"
	"github.com/modresolve/resolver/rerror"
)

func TestValueInterning(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	a := cache.Value("/a/b/c")
	b := cache.Value("/a/b/c")
	if a != b {
		t.Error("expected Value to return the identical pointer for the same path")
	}
}

func TestInsideNodeModules(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	n := cache.Value("/project/node_modules/lodash/index.js")
	if !n.InsideNodeModules {
		t.Error("expected InsideNodeModules to propagate from an ancestor")
	}

	outside := cache.Value("/project/src/index.js")
	if outside.InsideNodeModules {
		t.Error("expected InsideNodeModules false for a path with no node_modules ancestor")
	}
}

func TestClearPreservesOldHandles(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	old := cache.Value("/a/b")
	cache.Clear()
	fresh := cache.Value("/a/b")

	if old == fresh {
		t.Error("expected a new generation to mint a fresh node")
	}
	if old.Path != "/a/b" {
		t.Error("expected old handle to remain readable after Clear")
	}
}

func TestMetadataCachesNegative(t *testing.T) {
	mfs := memfs.New()
	cache := pathgraph.NewCache(mfs)

	n := cache.Value("/missing.js")
	_, err1 := n.Metadata(mfs)
	_, err2 := n.Metadata(mfs)

	var rerr *rerror.Error
	if !rerror.As(err1, &rerr) || rerr.Kind != rerror.NotFound {
		t.Fatalf("expected NotFound, got %v", err1)
	}
	if err1 != err2 {
		t.Error("expected cached negative metadata to return the same error instance")
	}
}

func TestCanonicaliseFollowsSymlink(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/pkg/real.js", "export default 1", 0o644)
	mfs.AddSymlink("/pkg/alias.js", "./real.js")

	cache := pathgraph.NewCache(mfs)
	n := cache.Value("/pkg/alias.js")

	canon, err := n.Canonicalise(cache, mfs)
	if err != nil {
		t.Fatalf("Canonicalise() error = %v", err)
	}
	if canon.Path != "/pkg/real.js" {
		t.Errorf("Canonicalise() = %q, want /pkg/real.js", canon.Path)
	}
}

func TestCanonicaliseDetectsCycle(t *testing.T) {
	mfs := memfs.New()
	mfs.AddSymlink("/a.js", "./b.js")
	mfs.AddSymlink("/b.js", "./a.js")

	cache := pathgraph.NewCache(mfs)
	n := cache.Value("/a.js")

	_, err := n.Canonicalise(cache, mfs)
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.IOError {
		t.Fatalf("expected IOError for symlink cycle, got %v", err)
	}
}

func TestFindPackageJSONWalksAncestors(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/package.json", `{"name":"project"}`, 0o644)
	mfs.AddFile("/project/src/index.js", "export default 1", 0o644)

	cache := pathgraph.NewCache(mfs)
	n := cache.Value("/project/src")

	node, pkg, err := n.FindPackageJSON(cache, mfs, nil)
	if err != nil {
		t.Fatalf("FindPackageJSON() error = %v", err)
	}
	if node == nil || node.Path != "/project" {
		t.Fatalf("FindPackageJSON() node = %v, want /project", node)
	}
	if pkg.Name != "project" {
		t.Errorf("FindPackageJSON() pkg.Name = %q, want project", pkg.Name)
	}
}

func TestFindPackageJSONHonoursCustomDescriptionFiles(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/bower.json", `{"name":"project-bower"}`, 0o644)
	mfs.AddFile("/project/package.json", `{"name":"project-npm"}`, 0o644)
	mfs.AddFile("/project/src/index.js", "export default 1", 0o644)

	cache := pathgraph.NewCache(mfs)
	n := cache.Value("/project/src")

	node, pkg, err := n.FindPackageJSON(cache, mfs, []string{"bower.json", "package.json"})
	if err != nil {
		t.Fatalf("FindPackageJSON() error = %v", err)
	}
	if node == nil || node.Path != "/project" {
		t.Fatalf("FindPackageJSON() node = %v, want /project", node)
	}
	if pkg.Name != "project-bower" {
		t.Errorf("FindPackageJSON() pkg.Name = %q, want project-bower (bower.json tried first)", pkg.Name)
	}
}

func TestCachedNodeModules(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/project/node_modules/lodash/index.js", "", 0o644)

	cache := pathgraph.NewCache(mfs)
	n := cache.Value("/project")

	nm := n.CachedNodeModules(cache, mfs)
	if nm == nil {
		t.Fatal("expected CachedNodeModules to find node_modules")
	}
	if nm.Path != "/project/node_modules" {
		t.Errorf("CachedNodeModules() = %q", nm.Path)
	}
}
