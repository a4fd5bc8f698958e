//go:build !unix

package ccfeatures

import "runtime"

// Host returns a short description of the build host.
func Host() string {
	return runtime.GOOS + " " + runtime.GOARCH
}
