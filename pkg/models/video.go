package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// Video represents a catalog entry
type Video struct {
	ID              string                `json:"v"`
	Title           string                `json:"title"`
	Creator         string                `json:"creator,omitempty"`
	CreatorOriginal string                `json:"creatorOriginal,omitempty"`
	Description     string                `json:"description,omitempty"`
	Tags            []string              `json:"tags,omitempty"`
	ReleaseDate     string                `json:"releaseDate,omitempty"`
	SubtitleURL     string                `json:"subtitleUrl,omitempty"`
	Submitter       string                `json:"submitter,omitempty"`
	SubmissionDate  string                `json:"submissionDate,omitempty"`
	DurationSeconds *float64              `json:"durationSeconds,omitempty"`
	Hidden          bool                  `json:"hidden,omitempty"`
	HiddenReason    string                `json:"hiddenReason,omitempty"`
	HiddenAt        string                `json:"hiddenAt,omitempty"`
	Contributors    []SubtitleContributor `json:"subtitleContributors,omitempty"`

	// Extra holds fields written by older tools that this schema does not know.
	// They are written back untouched.
	Extra map[string]json.RawMessage `json:"-"`
}

// SubtitleContributor records who produced a promoted subtitle version
type SubtitleContributor struct {
	Version     int       `json:"version"`
	UserID      string    `json:"userId,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type videoAlias Video

var videoFields = jsonFieldNames(reflect.TypeOf(videoAlias{}))

// UnmarshalJSON decodes the known schema and keeps the rest in Extra
func (v *Video) UnmarshalJSON(data []byte) error {
	var alias videoAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for name := range raw {
		if _, known := videoFields[name]; known {
			delete(raw, name)
		}
	}
	if len(raw) > 0 {
		alias.Extra = raw
	}

	*v = Video(alias)
	return nil
}

// MarshalJSON encodes the known schema and merges Extra back in
func (v Video) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(videoAlias(v))
	if err != nil || len(v.Extra) == 0 {
		return data, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for name, value := range v.Extra {
		if _, exists := merged[name]; !exists {
			merged[name] = value
		}
	}
	return json.Marshal(merged)
}

// Clone returns a copy that shares no slices or maps with v
func (v Video) Clone() Video {
	out := v
	if v.Tags != nil {
		out.Tags = append([]string(nil), v.Tags...)
	}
	if v.Contributors != nil {
		out.Contributors = append([]SubtitleContributor(nil), v.Contributors...)
	}
	if v.DurationSeconds != nil {
		d := *v.DurationSeconds
		out.DurationSeconds = &d
	}
	if v.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(v.Extra))
		for k, val := range v.Extra {
			out.Extra[k] = val
		}
	}
	return out
}

// HasTag reports whether the video carries tag (case-insensitive)
func (v Video) HasTag(tag string) bool {
	for _, t := range v.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func jsonFieldNames(t reflect.Type) map[string]struct{} {
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name := strings.Split(tag, ",")[0]
		if name == "" || name == "-" {
			continue
		}
		names[name] = struct{}{}
	}
	return names
}
