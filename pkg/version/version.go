// Package version provides version information for odbcbridge.
//
// The version is embedded from version.txt at compile time and is reported
// through SQLGetInfo(SQL_DRIVER_VER) and the probe command.
package version

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed version.txt
var versionFile string

// Version is the current version of odbcbridge.
var Version = strings.TrimSpace(versionFile)

// String returns the version string.
func String() string {
	return Version
}

// Full returns a full version string with the package name.
func Full() string {
	return "odbcbridge version " + Version
}

// ODBC returns the version in the "##.##.####" form driver managers expect.
func ODBC() string {
	parts := strings.SplitN(strings.TrimPrefix(Version, "v"), ".", 3)
	nums := [3]int{}
	for i, p := range parts {
		if i >= 3 {
			break
		}
		if idx := strings.IndexFunc(p, func(r rune) bool { return r < '0' || r > '9' }); idx >= 0 {
			p = p[:idx]
		}
		nums[i], _ = strconv.Atoi(p)
	}
	return fmt.Sprintf("%02d.%02d.%04d", nums[0], nums[1], nums[2])
}
