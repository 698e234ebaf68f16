package draft

import (
	"os"

	"golang.org/x/sys/unix"
)

// flock applies an advisory lock to the whole file. Locks belong to the open
// file description, so two handles in the same process exclude each other too.
func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if err != unix.EINTR {
			return err
		}
	}
}

func lockShared(f *os.File) error {
	return flock(f, unix.LOCK_SH)
}

func lockExclusive(f *os.File) error {
	return flock(f, unix.LOCK_EX)
}

func unlock(f *os.File) error {
	return flock(f, unix.LOCK_UN)
}
