package sync

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSyncInProgress is returned by Sync when another sync is running. The
// call is dropped, not queued.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrStopped marks a result discarded because the synchronizer stopped
// while the fetch was in flight. A fetch error, if any, is joined to it.
var ErrStopped = errors.New("synchronizer stopped")

// FetchError collects the per-slice failures of one refresh.
type FetchError struct {
	// Failed maps an aggregate field name to the error fetching it.
	Failed map[string]error
}

func (e *FetchError) add(field string, err error) {
	if e.Failed == nil {
		e.Failed = make(map[string]error)
	}
	e.Failed[field] = err
}

// Fields returns the failed field names, sorted.
func (e *FetchError) Fields() []string {
	fields := make([]string, 0, len(e.Failed))
	for f := range e.Failed {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func (e *FetchError) Error() string {
	parts := make([]string, 0, len(e.Failed))
	for _, f := range e.Fields() {
		parts = append(parts, fmt.Sprintf("%s: %v", f, e.Failed[f]))
	}
	return "refresh failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the slice errors to errors.Is and errors.As.
func (e *FetchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, f := range e.Fields() {
		errs = append(errs, e.Failed[f])
	}
	return errs
}
