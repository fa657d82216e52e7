package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"updatekit/internal/version"
)

// Version information - injected at build time via ldflags.
// Version and Build double as the installed identifier when no manifest
// declares one.
var (
	Version   = "dev"
	Build     = "unknown"
	BuildTime = ""
)

// buildIdentifier returns the identifier baked in at build time.
func buildIdentifier() version.Identifier {
	build := Build
	if build == "unknown" {
		build = ""
	}
	return version.New(Version, build)
}

// printVersion prints the version information
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "updatekit version %s", Version)

	if Build != "unknown" && Build != "" {
		_, _ = fmt.Fprintf(w, " (build: %s)", Build)
	}

	if BuildTime != "" {
		_, _ = fmt.Fprintf(w, " [%s]", BuildTime)
	}

	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" && len(setting.Value) > 7 {
					_, _ = fmt.Fprintf(w, "Commit: %s\n", setting.Value[:7])
					break
				}
			}
		}
	}
}
