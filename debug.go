package itemx

import (
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// debugConfig dumps values without calling their String or GoString
// methods, so generated GoString methods can delegate here safely.
var debugConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Debug returns a deterministic, human-readable dump of v. Map keys are
// sorted and pointer addresses omitted, so equal values print equally.
func Debug(v any) string {
	return strings.TrimRight(debugConfig.Sdump(v), "\n")
}
