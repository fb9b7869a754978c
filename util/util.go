// Package util is a set of utility variables or methods
package util

import (
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
)

var SupportedExt = mapset.NewSet(
	".jpeg", ".jpg", ".JPEG", ".JPG",
	".png", ".PNG",
)

// IsSupportedImage reports whether the file name carries one of the supported image extensions.
func IsSupportedImage(name string) bool {
	return SupportedExt.Contains(filepath.Ext(name))
}
