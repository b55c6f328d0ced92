//go:build !windows

package filesystem

import (
	"errors"
	"testing"

	"achparse/pkg/contract"
)

// TestTargetAbsoluteUnix 非扁平模式拒绝绝对路径；扁平模式取基名
func TestTargetAbsoluteUnix(t *testing.T) {
	dir := t.TempDir()
	w, _ := New(&Options{OutputDir: dir, Flat: ptr(false)})
	if _, err := w.target("/abs/pay.json"); !errors.Is(err, contract.ErrPathInvalid) {
		t.Fatalf("expect invalid, got %v", err)
	}
	f, _ := New(&Options{OutputDir: dir})
	got, err := f.target("/abs/pay.json")
	if err != nil || got != dir+"/pay.json" {
		t.Fatalf("flat target %q %v", got, err)
	}
}
