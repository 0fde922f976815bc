//go:build !unix

package pager

import "os"

// Advisory locking is only wired up on unix; elsewhere the open file
// handle itself is the only guard.
func lockExclusive(f *os.File) error { return nil }

func unlockFile(f *os.File) {}
