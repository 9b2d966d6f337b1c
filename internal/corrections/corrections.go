package corrections

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/srt"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

const (
	// MaxCueTextLength bounds original and updated cue text, in characters
	MaxCueTextLength = 1000
	// MaxNotesLength bounds correction notes, in characters
	MaxNotesLength = 500
)

// Error codes
const (
	CodeEmptyBaseSubtitles     = "empty_base_subtitles"
	CodeCueNotFound            = "cue_not_found"
	CodeCueConflict            = "cue_conflict"
	CodeMissingVideoID         = "missing_video_id"
	CodeInvalidSubtitleVersion = "invalid_subtitle_version"
	CodeMissingCues            = "missing_cues"
	CodeInvalidSequence        = "invalid_sequence"
	CodeMissingUpdatedText     = "missing_updated_text"
	CodeCueTooLong             = "cue_too_long"
	CodeNotesTooLong           = "notes_too_long"
	CodeInvalidTimeWindow      = "invalid_time_window"
	CodeBlankLineInText        = "blank_line_in_text"
)

// Error is a correction failure with a stable machine-readable code
type Error struct {
	Code     string
	Sequence int
}

func (e *Error) Error() string {
	return e.Code
}

// Is matches errors carrying the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Status maps the code to an HTTP status
func (e *Error) Status() int {
	if e.Code == CodeCueConflict {
		return http.StatusConflict
	}
	return http.StatusBadRequest
}

// Sentinel errors for errors.Is checks
var (
	ErrEmptyBaseSubtitles = &Error{Code: CodeEmptyBaseSubtitles}
	ErrCueNotFound        = &Error{Code: CodeCueNotFound}
	ErrCueConflict        = &Error{Code: CodeCueConflict}
)

// Code extracts the code from err, or "" when err is not a correction error
func Code(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// NormalizeText unifies line endings and truncates to MaxCueTextLength characters
func NormalizeText(text string) string {
	text = srt.NormalizeNewlines(text)
	if utf8.RuneCountInString(text) <= MaxCueTextLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxCueTextLength])
}

// Apply merges edits into baseText and returns the new subtitle text. Each
// edit must name an existing cue whose current text equals its original text.
// Any failing edit aborts the whole batch.
func Apply(baseText string, edits []models.CueEdit) (string, error) {
	cues := srt.Parse(baseText)
	if len(cues) == 0 {
		return "", ErrEmptyBaseSubtitles
	}

	index := make(map[int]int, len(cues))
	for i, cue := range cues {
		index[cue.Sequence] = i
	}

	for _, edit := range edits {
		i, ok := index[edit.Sequence]
		if !ok {
			return "", &Error{Code: CodeCueNotFound, Sequence: edit.Sequence}
		}

		current := NormalizeText(cues[i].Text())
		if NormalizeText(edit.OriginalText) != current {
			return "", &Error{Code: CodeCueConflict, Sequence: edit.Sequence}
		}

		cues[i].Lines = strings.Split(NormalizeText(edit.UpdatedText), "\n")
	}

	return srt.Serialize(cues), nil
}

// Validate checks a correction payload before it enters the review queue
func Validate(p *models.CorrectionPayload) error {
	if p == nil || strings.TrimSpace(p.VideoID) == "" {
		return &Error{Code: CodeMissingVideoID}
	}
	if p.SubtitleVersion <= 0 {
		return &Error{Code: CodeInvalidSubtitleVersion}
	}
	if len(p.Cues) == 0 {
		return &Error{Code: CodeMissingCues}
	}

	for _, cue := range p.Cues {
		if cue.Sequence <= 0 {
			return &Error{Code: CodeInvalidSequence, Sequence: cue.Sequence}
		}
		if strings.TrimSpace(cue.UpdatedText) == "" {
			return &Error{Code: CodeMissingUpdatedText, Sequence: cue.Sequence}
		}
		if utf8.RuneCountInString(cue.OriginalText) > MaxCueTextLength ||
			utf8.RuneCountInString(cue.UpdatedText) > MaxCueTextLength {
			return &Error{Code: CodeCueTooLong, Sequence: cue.Sequence}
		}
		if hasBlankLine(cue.UpdatedText) {
			return &Error{Code: CodeBlankLineInText, Sequence: cue.Sequence}
		}
		if cue.EndSeconds < cue.StartSeconds {
			return &Error{Code: CodeInvalidTimeWindow, Sequence: cue.Sequence}
		}
	}

	if utf8.RuneCountInString(p.Notes) > MaxNotesLength {
		return &Error{Code: CodeNotesTooLong}
	}
	if p.WindowEndSeconds < p.WindowStartSeconds {
		return &Error{Code: CodeInvalidTimeWindow}
	}
	return nil
}

// hasBlankLine reports a whitespace-only line between text lines. SRT ends a
// cue at the first blank line, so such text cannot be stored as written.
func hasBlankLine(text string) bool {
	text = strings.Trim(srt.NormalizeNewlines(text), "\n")
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			return true
		}
	}
	return false
}
