// Package buildinfo feeds the process's own build metadata — version,
// revision, dirty-tree flag — into the server's startup log line; nothing
// sets the Prometheus build_info gauge from it. With no demo main/CLI in
// scope to thread
// -ldflags version strings through (spec §1/§7 non-goal), this reads
// everything straight off the compiled binary's embedded VCS stamp via
// carlmjohnson/versioninfo, the same build-info library the mixnet
// dependency set carries.
package buildinfo

import (
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

// Info is a snapshot of the running binary's build metadata.
type Info struct {
	Version  string
	Revision string
	Dirty    bool
}

// Report reads the current build metadata from the Go module/VCS stamp.
func Report() Info {
	return Info{
		Version:  versioninfo.Version,
		Revision: versioninfo.Revision,
		Dirty:    versioninfo.DirtyBuild(),
	}
}

// String renders a one-line summary suitable for a startup log line, e.g.
// "v0.0.0-20260101-abcdef1 (dirty)".
func (i Info) String() string {
	if i.Dirty {
		return fmt.Sprintf("%s-%s (dirty)", i.Version, i.Revision)
	}
	return fmt.Sprintf("%s-%s", i.Version, i.Revision)
}
