package coderun

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// FileStore is the per-activity map of shared file contents, written by every
// code cell of the activity.
type FileStore struct {
	mu       sync.RWMutex
	files    map[string]string
	versions map[string]uint64
}

func NewFileStore(initial map[string]string) *FileStore {
	fs := &FileStore{files: make(map[string]string), versions: make(map[string]uint64)}
	for name, content := range initial {
		fs.files[name] = content
		fs.versions[name] = 1
	}
	return fs
}

func (fs *FileStore) Get(name string) (string, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	c, ok := fs.files[name]
	return c, ok
}

func (fs *FileStore) Set(name, content string) {
	fs.mu.Lock()
	fs.files[name] = content
	fs.versions[name]++
	fs.mu.Unlock()
}

// Names returns the stored file names, sorted.
func (fs *FileStore) Names() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	names := make([]string, 0, len(fs.files))
	for n := range fs.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies the current contents and their versions.
func (fs *FileStore) Snapshot() (files map[string]string, versions map[string]uint64) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	files = make(map[string]string, len(fs.files))
	versions = make(map[string]uint64, len(fs.versions))
	for n, c := range fs.files {
		files[n] = c
		versions[n] = fs.versions[n]
	}
	return files, versions
}

// Merge applies updates on top of the current contents, leaving other entries untouched.
// When base is given, an entry changed since that snapshot by someone else is
// kept and its name is returned in skipped. Applied entries advance base, so
// the same writer can update a file again.
func (fs *FileStore) Merge(updates map[string]string, base map[string]uint64) (skipped []string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	names := make([]string, 0, len(updates))
	for n := range updates {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if base != nil && fs.versions[n] != base[n] {
			skipped = append(skipped, n)
			continue
		}
		fs.files[n] = updates[n]
		fs.versions[n]++
		if base != nil {
			base[n] = fs.versions[n]
		}
	}
	return skipped
}

// compiled-language sources; anything else is shared data.
var sourceExts = map[string]bool{
	".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".h": true, ".hh": true, ".hpp": true, ".hxx": true,
	".py": true, ".java": true, ".js": true, ".ts": true, ".go": true, ".rs": true,
}

func isSource(name string) bool {
	return sourceExts[strings.ToLower(path.Ext(name))]
}

// SelectFiles picks the files sent along with a program. With a non-empty
// include list only those (present) files are sent; otherwise every data
// file (not a compiled-language source) is.
func SelectFiles(files map[string]string, include []string) map[string]string {
	out := make(map[string]string)
	if len(include) > 0 {
		for _, name := range include {
			if c, ok := files[name]; ok {
				out[name] = c
			}
		}
		return out
	}
	for name, c := range files {
		if !isSource(name) {
			out[name] = c
		}
	}
	return out
}
