// Package version exposes build information embedded by the Go
// toolchain, surfaced through the health endpoint.
package version

import "runtime/debug"

// Info is the build identity reported by the running binary.
type Info struct {
	GoVersion string `json:"goVersion"`
	Module    string `json:"module"`
	Revision  string `json:"revision,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
}

// Get reads the build info embedded at compile time. Binaries built
// outside a module (or with stripped build info) report unknowns.
func Get() Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{GoVersion: "unknown", Module: "unknown"}
	}

	info := Info{
		GoVersion: bi.GoVersion,
		Module:    bi.Path,
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Revision = setting.Value
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}
	return info
}
