// Package buildinfo contains build-time metadata injected at link time,
// separate from user configuration.
package buildinfo

// Set via -ldflags at build time.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// String returns a short human-readable version line.
func String() string {
	return Version + " (" + BuildDate + ")"
}
