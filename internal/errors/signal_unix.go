//go:build unix

package errors

import (
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// InstallSignalHandler makes memory faults on the calling goroutine panic
// instead of crashing the runtime, and routes fault signals delivered to the
// process into Fatal. The returned function uninstalls the handler.
func InstallSignalHandler() (stop func()) {
	debug.SetPanicOnFault(true)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGSEGV, unix.SIGBUS, unix.SIGILL)

	done := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			Fatal(newAt(CategorySystem, "FAULT_SIGNAL", fmt.Sprintf("received %v", sig),
				map[string]interface{}{"signal": sig.String()}))
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
