package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dubwatch/dubwatch/internal/job"
)

func TestSubmit_SendsMultipartFields(t *testing.T) {
	t.Parallel()

	var gotFile, gotStart, gotEnd, gotLanguage string
	var gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer f.Close()
		buf := make([]byte, 16)
		n, _ := f.Read(buf)
		gotFile = string(buf[:n])
		gotFilename = hdr.Filename
		gotStart = r.FormValue("start_time")
		gotEnd = r.FormValue("end_time")
		gotLanguage = r.FormValue("language")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"job_id":"abc-123"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	req := &job.Request{
		FileName:  "song.mp3",
		File:      []byte("audio-bytes"),
		StartTime: "2.5",
		EndTime:   "30",
		Language:  "French",
	}
	id, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if id != "abc-123" {
		t.Errorf("job id = %q, want %q", id, "abc-123")
	}
	if gotFilename != "song.mp3" {
		t.Errorf("filename = %q, want %q", gotFilename, "song.mp3")
	}
	if gotFile != "audio-bytes" {
		t.Errorf("file content = %q, want %q", gotFile, "audio-bytes")
	}
	if gotStart != "2.5" || gotEnd != "30" {
		t.Errorf("trim window = (%q, %q), want (2.5, 30)", gotStart, gotEnd)
	}
	if gotLanguage != "French" {
		t.Errorf("language = %q, want %q", gotLanguage, "French")
	}
}

func TestSubmit_OmitsAbsentTrimWindow(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if _, ok := r.MultipartForm.Value["start_time"]; ok {
			t.Error("start_time field present, want absent")
		}
		if _, ok := r.MultipartForm.Value["end_time"]; ok {
			t.Error("end_time field present, want absent")
		}
		w.Write([]byte(`{"job_id":"no-trim"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	req := &job.Request{FileName: "song.mp3", File: []byte("x"), Language: "Spanish"}
	if _, err := c.Submit(context.Background(), req); err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestSubmit_Non2xxCarriesStatusAndBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Unsupported language 'Klingon'"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Submit(context.Background(), &job.Request{FileName: "song.mp3", File: []byte("x")})
	if err == nil {
		t.Fatal("expected error for 400 response, got nil")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.Body == "" {
		t.Error("Body is empty, want response text")
	}
}

func TestSubmit_MissingJobID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Submit(context.Background(), &job.Request{FileName: "song.mp3", File: []byte("x")})
	if err == nil {
		t.Fatal("expected error for response without job_id, got nil")
	}
}

func TestFetch_DecodesSnapshot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/abc-123" {
			t.Errorf("path = %q, want /jobs/abc-123", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "proxy_tts",
			"stage": "proxy_tts (2/8)",
			"progress": 78,
			"vocals_url": "/files/abc-123/vocals.wav",
			"segments": [{"start": 0, "end": 4.2, "text": "hello", "translated": "hola"}]
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	snap, err := c.Fetch(context.Background(), "abc-123")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Status != job.StatusProxyTTS {
		t.Errorf("Status = %q, want %q", snap.Status, job.StatusProxyTTS)
	}
	if snap.Stage != "proxy_tts (2/8)" {
		t.Errorf("Stage = %q, want %q", snap.Stage, "proxy_tts (2/8)")
	}
	if snap.Progress != 78 {
		t.Errorf("Progress = %v, want 78", snap.Progress)
	}
	if snap.VocalsURL != "/files/abc-123/vocals.wav" {
		t.Errorf("VocalsURL = %q", snap.VocalsURL)
	}
	if len(snap.Segments) != 1 || snap.Segments[0].Translated != "hola" {
		t.Errorf("Segments = %+v, want one translated segment", snap.Segments)
	}
}

func TestFetch_Non2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Fetch(context.Background(), "abc-123")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", apiErr.StatusCode)
	}
	if apiErr.Body != "upstream down" {
		t.Errorf("Body = %q, want %q", apiErr.Body, "upstream down")
	}
}
