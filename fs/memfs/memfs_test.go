package memfs_test

import (
	"io/fs"
	"testing"

	"github.com/modresolve/resolver/fs/memfs"
	"github.com/modresolve/resolver/rerror"
)

func TestReadToString(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/pkg/index.js", "module.exports = {}", 0o644)

	got, err := mfs.ReadToString("/pkg/index.js")
	if err != nil {
		t.Fatalf("ReadToString() error = %v", err)
	}
	if got != "module.exports = {}" {
		t.Errorf("ReadToString() = %q", got)
	}
}

func TestReadToStringNotFound(t *testing.T) {
	mfs := memfs.New()
	_, err := mfs.ReadToString("/missing.js")
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.NotFound {
		t.Fatalf("expected NotFound error, got %v", err)
	}
}

func TestSymlinkMetadataAndReadLink(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/pkg/real.js", "export default 1", 0o644)
	mfs.AddSymlink("/pkg/alias.js", "./real.js")

	info, err := mfs.SymlinkMetadata("/pkg/alias.js")
	if err != nil {
		t.Fatalf("SymlinkMetadata() error = %v", err)
	}
	if info.Mode().Type() != fs.ModeSymlink {
		t.Errorf("SymlinkMetadata().Mode() = %v, want symlink", info.Mode())
	}

	target, err := mfs.ReadLink("/pkg/alias.js")
	if err != nil {
		t.Fatalf("ReadLink() error = %v", err)
	}
	if target != "./real.js" {
		t.Errorf("ReadLink() = %q, want %q", target, "./real.js")
	}
}

func TestMetadataFollowsSymlink(t *testing.T) {
	mfs := memfs.New()
	mfs.AddFile("/pkg/real.js", "export default 1", 0o644)
	mfs.AddSymlink("/pkg/alias.js", "./real.js")

	info, err := mfs.Metadata("/pkg/alias.js")
	if err != nil {
		t.Fatalf("Metadata() error = %v", err)
	}
	if info.IsDir() {
		t.Errorf("expected Metadata() to resolve to a regular file")
	}
}

func TestMetadataDetectsSymlinkCycle(t *testing.T) {
	mfs := memfs.New()
	mfs.AddSymlink("/a.js", "./b.js")
	mfs.AddSymlink("/b.js", "./a.js")

	_, err := mfs.Metadata("/a.js")
	var rerr *rerror.Error
	if !rerror.As(err, &rerr) || rerr.Kind != rerror.IOError {
		t.Fatalf("expected IOError for symlink cycle, got %v", err)
	}
}
