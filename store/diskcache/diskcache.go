// Package diskcache stores flate-compressed msgpack blobs under
// os.UserCacheDir(), keyed by a caller-supplied relative path. The
// border package uses it to optionally mirror its startup-loaded
// country-remap/composite-membership tables to a local cache file,
// rather than re-parsing literal Go tables on every process start,
// so a long-lived service can pick up hand-edited overrides without a
// recompile.
package diskcache

import (
	"compress/flate"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const appDir = "adrcore"

func fullPath(path string) (string, error) {
	cd, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cd, appDir, path), nil
}

// Store msgpack-encodes obj, flate-compresses it, and writes it to
// path under the OS cache directory, creating parent directories as
// needed.
func Store(path string, obj any) error {
	full, err := fullPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	f, err := os.Create(full)
	if err != nil {
		return err
	}
	defer f.Close()

	fw, err := flate.NewWriter(f, flate.BestSpeed)
	if err != nil {
		return err
	}
	if err := msgpack.NewEncoder(fw).Encode(obj); err != nil {
		return err
	}
	return fw.Close()
}

// Retrieve decodes path into obj, returning the file's modification
// time so callers can compare it against a known-good table version
// (e.g. skip a stale cache written by an older release).
func Retrieve(path string, obj any) (time.Time, error) {
	full, err := fullPath(path)
	if err != nil {
		return time.Time{}, err
	}

	f, err := os.Open(full)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return time.Time{}, err
	}

	fr := flate.NewReader(f)
	defer fr.Close()

	return fi.ModTime(), msgpack.NewDecoder(fr).Decode(obj)
}

// Cull removes the oldest cache files under the app cache directory
// until its total size is at or below maxBytes.
func Cull(maxBytes int64) error {
	dir, err := fullPath("")
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil
	}

	type fileInfo struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []fileInfo
	var total int64

	err = filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, fileInfo{p, info.Size(), info.ModTime()})
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	for len(files) > 0 && total > maxBytes {
		if err := os.Remove(files[0].path); err == nil {
			total -= files[0].size
		}
		files = files[1:]
	}
	return nil
}
