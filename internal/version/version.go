// Package version holds the tool version stamped into generated
// runtime package metadata.
package version

// Version is the modshield release version. It is embedded in the
// generated gatekeeper package metadata, so rebuilding with a newer
// tool produces a distinguishable runtime wheel.
const Version = "0.4.0"
