package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsageBytes returns the total size in bytes of the given paths: the database,
// its WAL side files and the vector index snapshot. Directories are summed recursively.
// Empty and missing paths contribute 0.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if !info.IsDir() {
			total += info.Size()
			continue
		}
		err = filepath.WalkDir(p, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// StoragePaths lists the files backing a database at dbPath and an index at indexPath.
func StoragePaths(dbPath, indexPath string) []string {
	var paths []string
	if indexPath != "" {
		paths = append(paths, indexPath, indexPath+".faiss", indexPath+".idmap")
	}
	if dbPath != "" && dbPath != ":memory:" {
		paths = append(paths, dbPath, dbPath+"-wal", dbPath+"-shm")
	}
	return paths
}
