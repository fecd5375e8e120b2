package dom

import (
	"errors"
	"fmt"
)

// NotFoundError reports a failed fail-fast lookup. Query holds the
// selector or id exactly as passed in, so a logged message can be pasted
// straight into the devtools console to reproduce the miss.
type NotFoundError struct {
	Query string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dom: no element matches %q", e.Query)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
