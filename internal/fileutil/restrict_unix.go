//go:build !windows

package fileutil

// restrict is a no-op: the mode bits already limit access to the owner.
func restrict(string) error { return nil }
