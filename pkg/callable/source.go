package callable

import (
	"path"

	"github.com/src-d/enry/v2"
)

// Language is the enry name of the language this package parses.
const Language = "Java"

// IsSource reports whether the file at name is a Java source file. Test and
// generated code is filtered by path substring further up.
func IsSource(name string) bool {
	return enry.GetLanguage(path.Base(name), nil) == Language
}
