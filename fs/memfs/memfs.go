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

// Package memfs provides an in-memory filesystem implementation for
// deterministic resolver tests, including symlinks, which fstest.MapFS
// alone cannot represent.
package memfs

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"testing/fstest"
	"time"

	"github.com/modresolve/resolver/rerror"
)

// symlinkEntry records a symlink's target separately from fstest.MapFS, which
// has no native symlink concept: MapFS treats every entry's Mode literally,
// and a Mode with ModeSymlink set produces a file whose "content" bytes
// the stdlib fs package does not interpret as a link target.
type symlinkEntry struct {
	target string
}

// MapFileSystem implements fs.FileSystem using an in-memory fstest.MapFS.
// This is useful for testing without touching the real filesystem, and
// additionally tracks symlinks so that the cached path graph's
// canonicalisation logic can be exercised deterministically.
type MapFileSystem struct {
	mu       sync.RWMutex
	mapFS    fstest.MapFS
	symlinks map[string]symlinkEntry
	tempDir  string
	modTime  time.Time
}

// New creates a new in-memory filesystem for testing.
func New() *MapFileSystem {
	return &MapFileSystem{
		mapFS:    make(fstest.MapFS),
		symlinks: make(map[string]symlinkEntry),
		tempDir:  "/tmp",
		modTime:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddFile adds a file to the in-memory filesystem.
func (mfs *MapFileSystem) AddFile(p string, content string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	p = mfs.cleanPath(p)
	mfs.mapFS[p] = &fstest.MapFile{
		Data:    []byte(content),
		Mode:    mode,
		ModTime: mfs.modTime,
	}
}

// AddDir adds a directory to the in-memory filesystem.
func (mfs *MapFileSystem) AddDir(p string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	p = mfs.cleanPath(p)
	keepFile := p + "/.keep"
	mfs.mapFS[keepFile] = &fstest.MapFile{
		Data:    []byte(""),
		Mode:    mode.Perm(),
		ModTime: mfs.modTime,
	}
}

// AddSymlink records p as a symlink pointing at target. target may be
// relative (resolved against p's parent directory by Metadata) or absolute.
func (mfs *MapFileSystem) AddSymlink(p, target string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	p = mfs.cleanPath(p)
	mfs.symlinks[p] = symlinkEntry{target: target}
}

// WriteFile implements fs.FileSystem.
func (mfs *MapFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = mfs.cleanPath(name)

	if err := mfs.ensureParentDirLocked(name); err != nil {
		return err
	}

	mfs.mapFS[name] = &fstest.MapFile{
		Data:    append([]byte(nil), data...),
		Mode:    perm,
		ModTime: mfs.modTime,
	}

	return nil
}

// ReadFile implements fs.FileSystem.
func (mfs *MapFileSystem) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.ReadFile(mfs.mapFS, mfs.cleanPath(name))
}

// Remove implements fs.FileSystem.
func (mfs *MapFileSystem) Remove(name string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = mfs.cleanPath(name)

	if _, exists := mfs.mapFS[name]; !exists {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}

	delete(mfs.mapFS, name)
	return nil
}

// MkdirAll implements fs.FileSystem.
func (mfs *MapFileSystem) MkdirAll(p string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	p = mfs.cleanPath(p)
	keepFile := p + "/.keep"

	if file, exists := mfs.mapFS[p]; exists && !file.Mode.IsDir() {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fmt.Errorf("not a directory")}
	}

	mfs.mapFS[keepFile] = &fstest.MapFile{
		Data:    []byte(""),
		Mode:    perm.Perm(),
		ModTime: mfs.modTime,
	}

	return nil
}

// TempDir implements fs.FileSystem.
func (mfs *MapFileSystem) TempDir() string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.tempDir
}

// SetTempDir sets the temp directory path.
func (mfs *MapFileSystem) SetTempDir(dir string) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.tempDir = dir
}

// Stat implements fs.FileSystem.
func (mfs *MapFileSystem) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.Stat(mfs.mapFS, mfs.cleanPath(name))
}

// Exists implements fs.FileSystem.
func (mfs *MapFileSystem) Exists(p string) bool {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	p = mfs.cleanPath(p)

	if _, exists := mfs.mapFS[p]; exists {
		return true
	}
	if _, exists := mfs.symlinks[p]; exists {
		return true
	}

	prefix := p + "/"
	for filePath := range mfs.mapFS {
		if strings.HasPrefix(filePath, prefix) {
			return true
		}
	}

	return false
}

// ReadDir implements fs.FileSystem.
func (mfs *MapFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.ReadDir(mfs.mapFS, mfs.cleanPath(name))
}

// Open implements fs.FileSystem.
func (mfs *MapFileSystem) Open(name string) (fs.File, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return mfs.mapFS.Open(mfs.cleanPath(name))
}

// ReadToString implements fs.FileSystem.
func (mfs *MapFileSystem) ReadToString(p string) (string, error) {
	data, err := mfs.ReadFile(p)
	if err != nil {
		return "", mfs.translate(p, err)
	}
	return string(data), nil
}

// Metadata implements fs.FileSystem, following a chain of symlinks.
func (mfs *MapFileSystem) Metadata(p string) (fs.FileInfo, error) {
	seen := make(map[string]bool)
	cur := mfs.cleanPath(p)
	for {
		mfs.mu.RLock()
		link, isLink := mfs.symlinks[cur]
		mfs.mu.RUnlock()
		if !isLink {
			info, err := mfs.Stat("/" + cur)
			if err != nil {
				return nil, mfs.translate(p, err)
			}
			return info, nil
		}
		if seen[cur] {
			return nil, rerror.New(rerror.IOError, p)
		}
		seen[cur] = true
		cur = mfs.resolveLinkTarget(cur, link.target)
	}
}

// SymlinkMetadata implements fs.FileSystem without following a terminal
// symlink.
func (mfs *MapFileSystem) SymlinkMetadata(p string) (fs.FileInfo, error) {
	clean := mfs.cleanPath(p)
	mfs.mu.RLock()
	_, isLink := mfs.symlinks[clean]
	mfs.mu.RUnlock()
	if !isLink {
		info, err := mfs.Stat("/" + clean)
		if err != nil {
			return nil, mfs.translate(p, err)
		}
		return info, nil
	}
	return symlinkFileInfo{name: path.Base(clean)}, nil
}

// ReadLink implements fs.FileSystem.
func (mfs *MapFileSystem) ReadLink(p string) (string, error) {
	clean := mfs.cleanPath(p)
	mfs.mu.RLock()
	link, isLink := mfs.symlinks[clean]
	mfs.mu.RUnlock()
	if !isLink {
		return "", rerror.New(rerror.PathNotSupported, p)
	}
	return link.target, nil
}

func (mfs *MapFileSystem) resolveLinkTarget(symlinkPath, target string) string {
	if strings.HasPrefix(target, "/") {
		return mfs.cleanPath(target)
	}
	dir := path.Dir("/" + symlinkPath)
	return mfs.cleanPath(path.Join(dir, target))
}

func (mfs *MapFileSystem) translate(p string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*fs.PathError); ok {
		return rerror.New(rerror.NotFound, p)
	}
	return rerror.Wrap(p, err)
}

// ListFiles returns all files in the MapFS for debugging.
func (mfs *MapFileSystem) ListFiles() map[string]string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	result := make(map[string]string)
	for p, file := range mfs.mapFS {
		if strings.HasSuffix(p, "/.keep") || p == ".keep" {
			dirPath := path.Dir(p)
			if dirPath == "." {
				dirPath = "/"
			}
			result[dirPath] = "directory"
		} else {
			result[p] = fmt.Sprintf("file (%d bytes)", len(file.Data))
		}
	}
	for p, link := range mfs.symlinks {
		result[p] = fmt.Sprintf("symlink -> %s", link.target)
	}
	return result
}

func (mfs *MapFileSystem) cleanPath(p string) string {
	cleaned := path.Clean(p)
	if !path.IsAbs(cleaned) {
		cleaned = "/" + cleaned
	}
	return strings.TrimPrefix(cleaned, "/")
}

func (mfs *MapFileSystem) ensureParentDirLocked(filePath string) error {
	dir := path.Dir(filePath)
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}

	if file, exists := mfs.mapFS[dir]; exists && !file.Mode.IsDir() {
		return &fs.PathError{Op: "open", Path: filePath, Err: fmt.Errorf("not a directory")}
	}

	return nil
}

// symlinkFileInfo is the fs.FileInfo returned by SymlinkMetadata for a
// symlink entry, reporting ModeSymlink rather than the target's mode.
type symlinkFileInfo struct {
	name string
}

func (i symlinkFileInfo) Name() string       { return i.name }
func (i symlinkFileInfo) Size() int64        { return 0 }
func (i symlinkFileInfo) Mode() fs.FileMode  { return fs.ModeSymlink }
func (i symlinkFileInfo) ModTime() time.Time { return time.Time{} }
func (i symlinkFileInfo) IsDir() bool        { return false }
func (i symlinkFileInfo) Sys() any           { return nil }
