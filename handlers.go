package main

import (
	"encoding/json"
	"image/png"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/kwv/focusreticle/reticle"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(recorder *reticle.Recorder, config *reticle.Config) http.Handler {
	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Frames    uint64    `json:"frames"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Frames:    recorder.Frames(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	}).Methods(http.MethodGet)

	// Latest frame as JSON
	r.HandleFunc("/state", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := latest(w, recorder)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			log.Printf("Error encoding state: %v", err)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc("/reticle.svg", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := latest(w, recorder)
		if !ok {
			return
		}
		renderer, err := reticle.NewVectorRenderer(config.Indicator)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToSVG(w, snap); err != nil {
			log.Printf("Error rendering SVG: %v", err)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc("/reticle.png", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := latest(w, recorder)
		if !ok {
			return
		}
		renderer, err := reticle.NewVectorRenderer(config.Indicator)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToPNG(w, snap); err != nil {
			log.Printf("Error rendering PNG: %v", err)
		}
	}).Methods(http.MethodGet)

	// Pixel preview with a status label
	r.HandleFunc("/preview.png", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := latest(w, recorder)
		if !ok {
			return
		}
		preview, err := reticle.NewRasterPreview(config.Indicator)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := png.Encode(w, preview.Render(snap)); err != nil {
			log.Printf("Error encoding preview PNG: %v", err)
		}
	}).Methods(http.MethodGet)

	r.HandleFunc("/segments.geojson", func(w http.ResponseWriter, req *http.Request) {
		snap, ok := latest(w, recorder)
		if !ok {
			return
		}
		data, err := snap.FeatureCollection().MarshalJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing GeoJSON: %v", err)
		}
	}).Methods(http.MethodGet)

	return r
}

// latest returns the last committed frame, or writes 503 if there is none yet
func latest(w http.ResponseWriter, recorder *reticle.Recorder) (reticle.Snapshot, bool) {
	snap, ok := recorder.Snapshot()
	if !ok {
		http.Error(w, "No frame available", http.StatusServiceUnavailable)
	}
	return snap, ok
}
