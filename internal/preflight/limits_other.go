//go:build !unix

package preflight

// checkFileDescriptors is a no-op where rlimits do not exist.
func checkFileDescriptors() Check {
	return Check{
		Name:    "file_descriptors",
		Passed:  true,
		Message: "not limited on this platform",
	}
}
