package remote

import (
	"fmt"
	"net/http"

	"github.com/bmeg/datacheck/checksum"
)

const retrySuggestion = "Please try again in a few minutes. " +
	"If this error persists, report the broken link to the dataset maintainers."

// FetchError is a transport failure while downloading an artifact. No
// retry is attempted; the message tells the user to try again later.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	cause := ""
	switch {
	case e.StatusCode != 0:
		cause = fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		cause = e.Err.Error()
	default:
		cause = "unknown error"
	}
	return fmt.Sprintf("failed to download %s: %s. %s", e.URL, cause, retrySuggestion)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IntegrityError reports a downloaded (or previously present) file whose
// digest differs from the expected one. The file stays on disk.
type IntegrityError struct {
	Path      string
	Algorithm checksum.Algorithm
	Got       string
	Want      string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s has a %s checksum (%s) differing from expected (%s), file may be corrupted",
		e.Path, e.Algorithm, e.Got, e.Want)
}
