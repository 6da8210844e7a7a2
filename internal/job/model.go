package job

import (
	"errors"
	"math"
	"strconv"
)

type Status string

// Status values reported by the dubbing service. The intermediate stages
// (separating through mixing) are informational; the controller only cares
// whether a status is terminal.
const (
	StatusQueued       Status = "queued"
	StatusSeparating   Status = "separating"
	StatusTranscribing Status = "transcribing"
	StatusTranslating  Status = "translating"
	StatusProxyTTS     Status = "proxy_tts"
	StatusSVC          Status = "svc"
	StatusMixing       Status = "mixing"
	StatusDone         Status = "done"
	StatusError        Status = "error"
	StatusNotFound     Status = "not_found"
)

// IsTerminal returns true for statuses after which the job will never change.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError || s == StatusNotFound
}

var validLanguages = map[string]bool{
	"Spanish": true,
	"French":  true,
	"German":  true,
}

// Word is a word-level timing entry from the transcription stage.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment is one transcribed (and translated) span of the vocal track.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Translated string  `json:"translated,omitempty"`
	Language   string  `json:"language,omitempty"`
	Words      []Word  `json:"words,omitempty"`
}

// Snapshot is one immutable poll result. Every poll produces a new Snapshot;
// the previous one is never mutated. Artifact URLs are relative paths served
// by the dubbing service; resolving them is the view layer's job.
type Snapshot struct {
	Status             Status    `json:"status"`
	Stage              string    `json:"stage,omitempty"`
	Progress           float64   `json:"progress,omitempty"`
	Error              string    `json:"error,omitempty"`
	VocalsURL          string    `json:"vocals_url,omitempty"`
	InstrumentalURL    string    `json:"instrumental_url,omitempty"`
	TTSURL             string    `json:"tts_url,omitempty"`
	CombinedURL        string    `json:"combined_url,omitempty"`
	MixURL             string    `json:"mix_url,omitempty"`
	TargetLanguage     string    `json:"target_language,omitempty"`
	SelectedVoice      string    `json:"selected_voice,omitempty"`
	Segments           []Segment `json:"segments,omitempty"`
	Words              []Word    `json:"words,omitempty"`
	ProxySegmentsDone  int       `json:"proxy_segments_done,omitempty"`
	ProxySegmentsTotal int       `json:"proxy_segments_total,omitempty"`
}

// Request is a prospective dubbing job. StartTime and EndTime are kept as the
// raw form strings so validation can distinguish "absent" from "malformed".
type Request struct {
	FileName  string
	File      []byte
	StartTime string
	EndTime   string
	Language  string
}

// Validate checks the request before any network call is made. Checks run in
// a fixed order and the first failure wins.
func (r *Request) Validate() error {
	if len(r.File) == 0 {
		return errors.New("no file selected")
	}
	if (r.StartTime == "") != (r.EndTime == "") {
		return errors.New("start and end times must be provided together")
	}
	if r.StartTime != "" {
		start, err1 := parseFinite(r.StartTime)
		end, err2 := parseFinite(r.EndTime)
		if err1 != nil || err2 != nil {
			return errors.New("start and end times must be numbers")
		}
		if start < 0 {
			return errors.New("start time must be >= 0")
		}
		if end <= start {
			return errors.New("end time must be greater than start time")
		}
	}
	if r.Language != "" && !validLanguages[r.Language] {
		return errors.New("language must be one of: Spanish, French, German")
	}
	return nil
}

// TrimWindow returns the parsed trim window. ok is false when no window was
// provided. Call Validate first; malformed values are treated as absent here.
func (r *Request) TrimWindow() (start, end float64, ok bool) {
	if r.StartTime == "" || r.EndTime == "" {
		return 0, 0, false
	}
	start, err1 := parseFinite(r.StartTime)
	end, err2 := parseFinite(r.EndTime)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, end, true
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("not finite")
	}
	return v, nil
}
