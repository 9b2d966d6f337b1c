package srt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	arrow         = "-->"
	byteOrderMark = "\ufeff"
)

// Cue is a single timed subtitle entry
type Cue struct {
	Sequence int
	Start    time.Duration
	End      time.Duration
	Lines    []string
}

// Text returns the cue lines joined with newlines
func (c Cue) Text() string {
	return strings.Join(c.Lines, "\n")
}

// NormalizeNewlines converts CRLF and lone CR line endings to LF
func NormalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// Parse reads SRT text into cues in file order. Malformed blocks are skipped
// and a later block repeating an earlier sequence number is dropped, so the
// result never fails; unparseable input yields an empty slice.
func Parse(text string) []Cue {
	text = strings.TrimPrefix(text, byteOrderMark)
	lines := strings.Split(NormalizeNewlines(text), "\n")

	cues := make([]Cue, 0)
	seen := make(map[int]struct{})

	var block []string
	flush := func() {
		if len(block) == 0 {
			return
		}
		cue, ok := parseBlock(block)
		block = block[:0]
		if !ok {
			return
		}
		if _, dup := seen[cue.Sequence]; dup {
			return
		}
		seen[cue.Sequence] = struct{}{}
		cues = append(cues, cue)
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()

	return cues
}

func parseBlock(block []string) (Cue, bool) {
	if len(block) < 2 {
		return Cue{}, false
	}

	seq, err := strconv.Atoi(strings.TrimSpace(block[0]))
	if err != nil || seq <= 0 {
		return Cue{}, false
	}

	idx := strings.Index(block[1], arrow)
	if idx < 0 {
		return Cue{}, false
	}
	left := strings.Fields(block[1][:idx])
	right := strings.Fields(block[1][idx+len(arrow):])
	if len(left) == 0 || len(right) == 0 {
		return Cue{}, false
	}

	cue := Cue{
		Sequence: seq,
		Start:    ParseTimestamp(left[len(left)-1]),
		End:      ParseTimestamp(right[0]),
		Lines:    make([]string, 0, len(block)-2),
	}
	cue.Lines = append(cue.Lines, block[2:]...)
	return cue, true
}

// ParseTimestamp accepts HH:MM:SS,mmm with either ',' or '.' before the
// milliseconds, MM:SS,mmm, and bare SS.mmm. Anything else is zero.
func ParseTimestamp(token string) time.Duration {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0
	}

	parts := strings.Split(token, ":")
	if len(parts) > 3 {
		return 0
	}

	var hours, minutes int
	var ok bool
	switch len(parts) {
	case 3:
		if hours, ok = parseUint(parts[0]); !ok {
			return 0
		}
		if minutes, ok = parseUint(parts[1]); !ok {
			return 0
		}
	case 2:
		if minutes, ok = parseUint(parts[0]); !ok {
			return 0
		}
	}

	secPart := strings.Replace(parts[len(parts)-1], ",", ".", 1)
	whole, frac, _ := strings.Cut(secPart, ".")
	seconds, ok := parseUint(whole)
	if !ok {
		return 0
	}
	millis := 0
	if frac != "" {
		if len(frac) > 3 {
			frac = frac[:3]
		}
		frac += strings.Repeat("0", 3-len(frac))
		if millis, ok = parseUint(frac); !ok {
			return 0
		}
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
}

func parseUint(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// FormatTimestamp renders d as HH:MM:SS,mmm. Hours are not wrapped at 24 and
// negative durations render as zero.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms %= 3_600_000
	minutes := ms / 60_000
	ms %= 60_000
	seconds := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// Serialize renders cues in ascending sequence order. Blocks are separated by
// one blank line with none after the last block. Whitespace-only text lines
// are omitted since they would end the block on the next parse.
func Serialize(cues []Cue) string {
	sorted := make([]Cue, len(cues))
	copy(sorted, cues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Sequence < sorted[j].Sequence
	})

	blocks := make([]string, 0, len(sorted))
	for _, cue := range sorted {
		var b strings.Builder
		fmt.Fprintf(&b, "%d\n%s %s %s\n", cue.Sequence, FormatTimestamp(cue.Start), arrow, FormatTimestamp(cue.End))
		for _, line := range cue.Lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n")
}
