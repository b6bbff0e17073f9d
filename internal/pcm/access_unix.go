//go:build unix

package pcm

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func checkReadable(path string) error {
	if err := unix.Access(path, unix.R_OK); err != nil {
		return fmt.Errorf("access %s: %w", path, err)
	}
	return nil
}
