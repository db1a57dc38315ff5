package version

import (
	"fmt"
	"strings"
	"sync"
)

// validCharacters is a list of characters valid in the appBuild string
const validCharacters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// appBuild is defined as a variable so it can be overridden during the build
// process with '-ldflags "-X github.com/cnchain/cnd/version.appBuild=foo"' if needed.
// It MUST only contain characters from validCharacters.
var appBuild string

var (
	version     string
	versionOnce sync.Once
)

// Version returns the application version as a properly formed string,
// with the build metadata appended when it is valid.
func Version() string {
	versionOnce.Do(func() {
		version = fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
		if build := checkAppBuild(appBuild); build != "" {
			version = fmt.Sprintf("%s-%s", version, build)
		}
	})
	return version
}

// checkAppBuild returns str unless it contains characters outside
// validCharacters, in which case it returns an empty string.
func checkAppBuild(str string) string {
	for _, r := range str {
		if !strings.ContainsRune(validCharacters, r) {
			return ""
		}
	}
	return str
}
