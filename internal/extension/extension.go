// Package extension provides pluggable fragments of runtime behavior
// injected into the gatekeeper compilation unit.
//
// Fragments are appended after the core routine in registration order.
// A fragment may reference symbols declared by the core routine or by
// earlier-registered fragments, never later ones.
package extension

// Extension emits one source fragment for the gatekeeper.
type Extension interface {
	Code() (string, error)
}
