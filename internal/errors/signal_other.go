//go:build !unix

package errors

import "runtime/debug"

// InstallSignalHandler only enables panic-on-fault on platforms without
// POSIX signals.
func InstallSignalHandler() (stop func()) {
	debug.SetPanicOnFault(true)

	return func() {}
}
