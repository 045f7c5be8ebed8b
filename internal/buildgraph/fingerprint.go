package buildgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const absent = "absent"

// Fingerprint summarizes the state of dir (or of files within dir when
// files is non-nil) from paths, sizes, modes and modification times.
// node_modules and .git directories are not descended into.
func Fingerprint(dir string, files []string) (string, error) {
	h := sha256.New()
	if files != nil {
		for _, rel := range files {
			info, err := os.Stat(filepath.Join(dir, rel))
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(h, "%s\x00%s\n", rel, absent)
				continue
			}
			if err != nil {
				return "", err
			}
			writeEntry(h, rel, info)
		}
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return absent, nil
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != dir && (d.Name() == "node_modules" || d.Name() == ".git") {
			return filepath.SkipDir
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		writeEntry(h, filepath.ToSlash(rel), info)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeEntry(w interface{ Write([]byte) (int, error) }, rel string, info fs.FileInfo) {
	fmt.Fprintf(w, "%s\x00%d\x00%o\x00%d\n", rel, info.Size(), info.Mode(), info.ModTime().UnixNano())
}
