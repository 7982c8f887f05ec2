//go:build unix

package preflight

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// checkFileDescriptors warns when the open file limit is very low.
func checkFileDescriptors() Check {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	actual := int(limit.Cur)
	if limit.Cur > 1<<30 {
		actual = 1 << 30
	}

	return Check{
		Name:     "file_descriptors",
		Required: minOpenFiles,
		Actual:   actual,
		Passed:   true,
		Warning:  actual < minOpenFiles,
	}
}
