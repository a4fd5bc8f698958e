//go:build unix

package ccfeatures

import "golang.org/x/sys/unix"

// Host returns a short description of the build host (e.g. "Linux 6.1.0 x86_64").
func Host() string {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uname.Sysname[:]) + " " +
		unix.ByteSliceToString(uname.Release[:]) + " " +
		unix.ByteSliceToString(uname.Machine[:])
}
