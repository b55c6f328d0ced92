//go:build !windows

package filesystem

import "os"

func renameReplace(from, to string) error { return os.Rename(from, to) }

// syncParent 尽力 fsync 父目录，使 rename 落盘。
func syncParent(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
