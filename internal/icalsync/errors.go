package icalsync

import (
	"errors"
	"fmt"

	"cowork/pkg/sanitizer"
)

// ErrSyncInProgress means another pass holds the space's sync lease.
var ErrSyncInProgress = errors.New("sync already in progress")

// SyncFetchError is the failure of a single import URL. It is recorded in the
// space's sync state and never aborts the other URLs of the pass.
type SyncFetchError struct {
	URL string
	Err error
}

func (e *SyncFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", sanitizer.RedactURL(e.URL), e.Err)
}

func (e *SyncFetchError) Unwrap() error {
	return e.Err
}
