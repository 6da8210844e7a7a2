package view

import (
	"testing"

	"github.com/dubwatch/dubwatch/internal/job"
)

func TestNormalizedProgress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		snap job.Snapshot
		want int
	}{
		{"done forces 100", job.Snapshot{Status: job.StatusDone}, 100},
		{"done ignores stale progress", job.Snapshot{Status: job.StatusDone, Progress: 95}, 100},
		{"mid progress", job.Snapshot{Status: job.StatusTranslating, Progress: 60}, 60},
		{"fractional rounds", job.Snapshot{Status: job.StatusProxyTTS, Progress: 78.6}, 79},
		{"negative clamps", job.Snapshot{Status: job.StatusQueued, Progress: -5}, 0},
		{"overflow clamps", job.Snapshot{Status: job.StatusMixing, Progress: 140}, 100},
		{"error keeps raw", job.Snapshot{Status: job.StatusError, Progress: 60}, 60},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizedProgress(&tt.snap); got != tt.want {
				t.Errorf("NormalizedProgress() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolveArtifact(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		base string
		rel  string
		want string
	}{
		{"relative path", "http://localhost:8000", "/files/j1/vocals.wav", "http://localhost:8000/files/j1/vocals.wav"},
		{"base with trailing slash", "http://localhost:8000/", "/files/j1/vocals.wav", "http://localhost:8000/files/j1/vocals.wav"},
		{"empty path", "http://localhost:8000", "", ""},
		{"absolute passes through", "http://localhost:8000", "https://cdn.example.com/a.wav", "https://cdn.example.com/a.wav"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ResolveArtifact(tt.base, tt.rel); got != tt.want {
				t.Errorf("ResolveArtifact(%q, %q) = %q, want %q", tt.base, tt.rel, got, tt.want)
			}
		})
	}
}

func TestFromSnapshot(t *testing.T) {
	t.Parallel()
	snap := &job.Snapshot{
		Status:          job.StatusDone,
		Stage:           "done",
		VocalsURL:       "/files/j1/v_translated_vocals.wav",
		InstrumentalURL: "/files/j1/instrumental.wav",
		MixURL:          "/files/j1/final_mix.wav",
		TargetLanguage:  "French",
		Segments:        []job.Segment{{Start: 0, End: 2, Text: "hi"}},
	}
	v := FromSnapshot("http://localhost:8000", "j1", snap, 42)

	if v.JobID != "j1" {
		t.Errorf("JobID = %q, want j1", v.JobID)
	}
	if v.Progress != 100 {
		t.Errorf("Progress = %d, want 100", v.Progress)
	}
	if v.ElapsedSeconds != 42 {
		t.Errorf("ElapsedSeconds = %d, want 42", v.ElapsedSeconds)
	}
	if v.FinalMixURL != "http://localhost:8000/files/j1/final_mix.wav" {
		t.Errorf("FinalMixURL = %q", v.FinalMixURL)
	}
	if v.VocalsURL != "http://localhost:8000/files/j1/v_translated_vocals.wav" {
		t.Errorf("VocalsURL = %q", v.VocalsURL)
	}
	if len(v.Segments) != 1 {
		t.Errorf("Segments len = %d, want 1", len(v.Segments))
	}
}

func TestFromSnapshot_CombinedWinsOverMix(t *testing.T) {
	t.Parallel()
	snap := &job.Snapshot{
		Status:      job.StatusDone,
		CombinedURL: "/files/j1/combined.wav",
		MixURL:      "/files/j1/final_mix.wav",
	}
	v := FromSnapshot("http://localhost:8000", "j1", snap, 0)
	if v.FinalMixURL != "http://localhost:8000/files/j1/combined.wav" {
		t.Errorf("FinalMixURL = %q, want the combined artifact", v.FinalMixURL)
	}
}

func TestFromSnapshot_NilSnapshot(t *testing.T) {
	t.Parallel()
	v := FromSnapshot("http://localhost:8000", "", nil, 7)
	if v.Status != "" || v.Progress != 0 {
		t.Errorf("zero snapshot view = %+v, want empty status and progress", v)
	}
	if v.ElapsedSeconds != 7 {
		t.Errorf("ElapsedSeconds = %d, want 7", v.ElapsedSeconds)
	}
}
