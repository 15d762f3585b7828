package session

import (
	"fmt"
	"regexp"
)

// Session names become directory names under the state root, so the
// alphabet is deliberately narrow: lowercase alphanumerics, dash and
// underscore, at most 64 characters. No dots, so a name can never
// traverse out of the root.
const namePattern = `^[a-z0-9_-]{1,64}$`

var validName = regexp.MustCompile(namePattern)

// ValidateName rejects names that are unsafe as on-disk directory names.
func ValidateName(name string) error {
	if validName.MatchString(name) {
		return nil
	}
	return fmt.Errorf("invalid session name %q: must match %s", name, namePattern)
}
