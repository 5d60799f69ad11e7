package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

const (
	missingImageURLMessage = "Missing 'image_url' in request."
	rateLimitedMessage     = "Too many requests. Please wait a moment and try again."
	unexpectedErrorMessage = "An unexpected error occurred. Please check server logs."
)

// findSimilarHandler serves POST /find_similar_jewelry.
func findSimilarHandler(p *searchPipeline, limiter *limiterPool, proxies proxyList) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if limiter != nil && !limiter.Allow(clientIP(r, proxies)) {
			p.metrics.limited()
			writeSearchError(w, http.StatusTooManyRequests, rateLimitedMessage)
			return
		}
		var body struct {
			ImageURL *string `json:"image_url"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil || body.ImageURL == nil {
			log.Println("find_similar_jewelry: missing image_url in request payload")
			writeSearchError(w, http.StatusBadRequest, missingImageURLMessage)
			return
		}
		log.Printf("find_similar_jewelry: received %s", *body.ImageURL)

		resp, err := p.Run(r.Context(), *body.ImageURL)
		if err != nil {
			var se *stageError
			if errors.As(err, &se) {
				writeSearchError(w, http.StatusInternalServerError, se.Msg)
				return
			}
			log.Printf("find_similar_jewelry: unexpected error: %v", err)
			writeSearchError(w, http.StatusInternalServerError, unexpectedErrorMessage)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func writeSearchError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SearchResponse{Data: []SearchResult{}, Error: msg})
}
