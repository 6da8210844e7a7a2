package main

import (
	"log/slog"
	"net/http"
	"time"
)

// probeService checks that the dubbing service answers at all before we start
// accepting submissions. Any HTTP response counts as reachable; the service
// has no dedicated health route.
//
// Fails softly. The service may simply not be up yet, and the poll loop
// tolerates a flaky backend anyway.
func probeService(serviceURL string) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(serviceURL)
	if err != nil {
		slog.Warn("dubbing service unreachable, submissions will fail until it is up",
			"url", serviceURL, "error", err)
		return
	}
	resp.Body.Close()
	slog.Info("dubbing service reachable", "url", serviceURL, "status", resp.StatusCode)
}
