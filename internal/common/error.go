package common

import "fmt"

var (
	ErrMirrorNotFound        = fmt.Errorf("mirror not found")
	ErrSyncAlreadyInProgress = fmt.Errorf("sync has already started")
	ErrStatusNotFound        = fmt.Errorf("sync status not found")
)

// FetchError reports a failed archive download. StatusCode is zero when the
// request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cannot fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("cannot fetch %s: %s", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// InstallError reports a failed extraction of a downloaded archive.
type InstallError struct {
	Archive string
	Err     error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("cannot install %s: %s", e.Archive, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}
