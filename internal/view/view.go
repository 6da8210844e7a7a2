// Package view derives display values from raw status snapshots: absolute
// download URLs and normalized progress. It never alters the snapshot itself.
package view

import (
	"math"
	"net/url"
	"strings"

	"github.com/dubwatch/dubwatch/internal/job"
)

// JobView is the display-ready projection of the current job state.
type JobView struct {
	JobID              string        `json:"job_id,omitempty"`
	Status             job.Status    `json:"status"`
	Stage              string        `json:"stage,omitempty"`
	Progress           int           `json:"progress"`
	Error              string        `json:"error,omitempty"`
	ElapsedSeconds     int64         `json:"elapsed_seconds"`
	VocalsURL          string        `json:"vocals_url,omitempty"`
	InstrumentalURL    string        `json:"instrumental_url,omitempty"`
	TTSURL             string        `json:"tts_url,omitempty"`
	FinalMixURL        string        `json:"final_mix_url,omitempty"`
	TargetLanguage     string        `json:"target_language,omitempty"`
	SelectedVoice      string        `json:"selected_voice,omitempty"`
	Segments           []job.Segment `json:"segments,omitempty"`
	Words              []job.Word    `json:"words,omitempty"`
	ProxySegmentsDone  int           `json:"proxy_segments_done,omitempty"`
	ProxySegmentsTotal int           `json:"proxy_segments_total,omitempty"`
}

// FromSnapshot projects a snapshot into display values, resolving relative
// artifact paths against the service base URL.
func FromSnapshot(baseURL, jobID string, snap *job.Snapshot, elapsedSeconds int64) JobView {
	v := JobView{
		JobID:          jobID,
		ElapsedSeconds: elapsedSeconds,
	}
	if snap == nil {
		return v
	}
	v.Status = snap.Status
	v.Stage = snap.Stage
	v.Progress = NormalizedProgress(snap)
	v.Error = snap.Error
	v.VocalsURL = ResolveArtifact(baseURL, snap.VocalsURL)
	v.InstrumentalURL = ResolveArtifact(baseURL, snap.InstrumentalURL)
	v.TTSURL = ResolveArtifact(baseURL, snap.TTSURL)
	v.FinalMixURL = ResolveArtifact(baseURL, finalMixPath(snap))
	v.TargetLanguage = snap.TargetLanguage
	v.SelectedVoice = snap.SelectedVoice
	v.Segments = snap.Segments
	v.Words = snap.Words
	v.ProxySegmentsDone = snap.ProxySegmentsDone
	v.ProxySegmentsTotal = snap.ProxySegmentsTotal
	return v
}

// finalMixPath picks the full-mix artifact. The service has emitted it under
// two names over time; combined_url wins when both are present.
func finalMixPath(snap *job.Snapshot) string {
	if snap.CombinedURL != "" {
		return snap.CombinedURL
	}
	return snap.MixURL
}

// NormalizedProgress clamps progress to 0..100 and forces 100 once the job
// is done, since the service omits progress on the final status payload.
func NormalizedProgress(snap *job.Snapshot) int {
	if snap.Status == job.StatusDone {
		return 100
	}
	p := math.Round(snap.Progress)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}

// ResolveArtifact joins a relative artifact path onto the service base URL.
// Absolute URLs and empty paths pass through unchanged.
func ResolveArtifact(baseURL, rel string) string {
	if rel == "" {
		return ""
	}
	if strings.Contains(rel, "://") {
		return rel
	}
	u, err := url.JoinPath(strings.TrimRight(baseURL, "/"), rel)
	if err != nil {
		return rel
	}
	return u
}
