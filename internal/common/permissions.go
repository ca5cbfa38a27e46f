package common

// File permission constants
const (
	// FilePermissionSecure is used for sensitive files (config, exported hashes)
	FilePermissionSecure = 0600

	// DirPermissionSecure is used for directories holding config or cloned scripts
	DirPermissionSecure = 0700

	// DirPermissionNormal is used for normal directories
	DirPermissionNormal = 0755
)
