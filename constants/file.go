package constants

import "strings"

// AllowedExtensions holds the default accepted image extensions for the watch folder.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// TempFilePrefixes marks transient files that editors and the OS drop into
// the watched folder mid-write. Names starting with one of these never reach
// the processor.
var TempFilePrefixes = []string{"~", "."}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// AllowedExt checks if a file extension is in the accepted set.
func AllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// IsTransientName reports whether a base filename carries a transient-file marker prefix.
func IsTransientName(name string) bool {
	for _, p := range TempFilePrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
