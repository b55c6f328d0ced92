//go:build windows

package filesystem

import "golang.org/x/sys/windows"

// renameReplace: MoveFileEx(REPLACE_EXISTING|WRITE_THROUGH)。
func renameReplace(from, to string) error {
	f, err := windows.UTF16PtrFromString(from)
	if err != nil {
		return err
	}
	t, err := windows.UTF16PtrFromString(to)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(f, t, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}

func syncParent(string) error { return nil }
