package errors

import (
	"fmt"
	"io"
	"os"

	"github.com/containerd/log"
	pkgerrors "github.com/pkg/errors"
)

var (
	exit             = os.Exit
	stderr io.Writer = os.Stderr
)

// Fatal reports err, including the captured stack when there is one, and
// terminates the process.
func Fatal(err error) {
	entry := log.L.WithError(err)
	if cat, ok := Category(err); ok {
		entry = entry.WithField("category", cat)
	}

	entry.Error("fatal internal error")
	fmt.Fprintf(stderr, "%+v\n", err)
	exit(2)
}

// Recover turns a panic into an error stored in *errp. It must be deferred
// directly:
//
//	defer errors.Recover(&err)
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}

	switch v := r.(type) {
	case *StandardError:
		*errp = pkgerrors.WithStack(v)
	case error:
		if _, ok := v.(interface{ StackTrace() pkgerrors.StackTrace }); ok {
			*errp = v
			return
		}

		*errp = pkgerrors.WithStack(v)
	default:
		*errp = pkgerrors.WithStack(newAt(CategoryInvariant, "PANIC", fmt.Sprint(v), nil))
	}
}
