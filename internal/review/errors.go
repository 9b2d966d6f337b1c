package review

import (
	"errors"
	"net/http"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/corrections"
)

// Error is a workflow failure with a stable code and the HTTP status it maps to
type Error struct {
	Code   string
	Status int
}

func (e *Error) Error() string {
	return e.Code
}

// Is matches errors carrying the same code, regardless of status
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrSubmissionNotFound     = &Error{Code: "not_found", Status: http.StatusNotFound}
	ErrNotPending             = &Error{Code: "not_pending", Status: http.StatusNotFound}
	ErrInvalidAction          = &Error{Code: "invalid_action", Status: http.StatusBadRequest}
	ErrInvalidSubmission      = &Error{Code: "invalid_submission", Status: http.StatusBadRequest}
	ErrVideoNotFound          = &Error{Code: "video_not_found", Status: http.StatusNotFound}
	ErrSubtitleVersionMissing = &Error{Code: "subtitle_version_missing", Status: http.StatusBadRequest}
	ErrStaleVersion           = &Error{Code: "stale_version", Status: http.StatusConflict}
	ErrBaseSubtitleMissing    = &Error{Code: "base_subtitle_missing", Status: http.StatusBadRequest}
	ErrApplyFailed            = &Error{Code: "apply_failed", Status: http.StatusBadRequest}
	ErrVersionNotFound        = &Error{Code: "version_not_found", Status: http.StatusNotFound}
	ErrCannotDeleteCurrent    = &Error{Code: "cannot_delete_current_version", Status: http.StatusBadRequest}
	ErrMissingYoutubeID       = &Error{Code: "missing_youtube_id", Status: http.StatusBadRequest}
	ErrMissingTitle           = &Error{Code: "missing_title", Status: http.StatusBadRequest}
	ErrInvalidStorageKey      = &Error{Code: "invalid_storage_key", Status: http.StatusBadRequest}
	ErrStagedSubtitleMissing  = &Error{Code: "staged_subtitle_missing", Status: http.StatusBadRequest}
	ErrSubtitleFetchFailed    = &Error{Code: "subtitle_fetch_failed", Status: http.StatusBadRequest}
)

// At approval time a vanished video is a bad request, not a missing route
var errApproveVideoNotFound = &Error{Code: ErrVideoNotFound.Code, Status: http.StatusBadRequest}

// applyError reports a correction engine failure during approval
func applyError(err error) *Error {
	if code := corrections.Code(err); code != "" {
		return &Error{Code: code, Status: http.StatusBadRequest}
	}
	return ErrApplyFailed
}

// Status returns the HTTP status and error code for err. Unknown errors map to
// 500 internal_error.
func Status(err error) (int, string) {
	var re *Error
	if errors.As(err, &re) {
		return re.Status, re.Code
	}
	var ce *corrections.Error
	if errors.As(err, &ce) {
		return ce.Status(), ce.Code
	}
	return http.StatusInternalServerError, "internal_error"
}
