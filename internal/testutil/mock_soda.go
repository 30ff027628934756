// Package testutil provides testing utilities for the sodafetch module.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// MockResponse defines a canned response for one request.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// MockSoda is a configurable mock Socrata server. By default it pages a
// fixture record set according to $limit and $offset; individual requests
// can be overridden to fail.
type MockSoda struct {
	server *httptest.Server

	mu       sync.RWMutex
	dataset  string
	records  []map[string]string
	failures map[int]MockResponse // request index -> forced response

	// Tracking
	RequestCount   int
	MetadataCount  int
	Offsets        []int
	Limits         []int
	Wheres         []string
	Orders         []string
	LastAppToken   string
	MetadataStatus int
	MetadataBody   string
}

// NewMockSoda creates a mock server for the given dataset identifier.
func NewMockSoda(dataset string) *MockSoda {
	mock := &MockSoda{
		dataset:        dataset,
		failures:       make(map[int]MockResponse),
		MetadataStatus: http.StatusOK,
		MetadataBody:   fmt.Sprintf(`{"name": "Mock Dataset %s", "columns": []}`, dataset),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/resource/"+dataset+".json", mock.resourceHandler)
	mux.HandleFunc("/api/views/"+dataset+".json", mock.metadataHandler)
	mock.server = httptest.NewServer(mux)

	return mock
}

// URL returns the mock server URL.
func (m *MockSoda) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockSoda) Close() {
	m.server.Close()
}

// SetRecords replaces the fixture record set the server pages through.
func (m *MockSoda) SetRecords(records []map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
}

// GenerateRecords installs n synthetic sale records.
func (m *MockSoda) GenerateRecords(n int) {
	records := make([]map[string]string, n)
	for i := 0; i < n; i++ {
		records[i] = map[string]string{
			"sale_date":  fmt.Sprintf("2020-01-%02dT00:00:00.000", i%28+1),
			"sale_price": strconv.Itoa(100000 + i),
			"borough":    strconv.Itoa(i%5 + 1),
		}
	}
	m.SetRecords(records)
}

// FailRequest forces the nth resource request (zero-based) to return resp
// instead of data.
func (m *MockSoda) FailRequest(n int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[n] = resp
}

// GetRequestCount returns the number of resource requests served.
func (m *MockSoda) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetOffsets returns the $offset value of each resource request in order.
func (m *MockSoda) GetOffsets() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.Offsets...)
}

// resourceHandler pages the fixture set.
func (m *MockSoda) resourceHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("$limit"))
	offset, _ := strconv.Atoi(query.Get("$offset"))

	m.mu.Lock()
	index := m.RequestCount
	m.RequestCount++
	m.Offsets = append(m.Offsets, offset)
	m.Limits = append(m.Limits, limit)
	m.Wheres = append(m.Wheres, query.Get("$where"))
	m.Orders = append(m.Orders, query.Get("$order"))
	m.LastAppToken = r.Header.Get("X-App-Token")
	forced, hasForced := m.failures[index]
	records := m.records
	m.mu.Unlock()

	if hasForced {
		for key, value := range forced.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(forced.StatusCode)
		if forced.Body != "" {
			w.Write([]byte(forced.Body))
		}
		return
	}

	page := pageOf(records, offset, limit)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(page)
}

// metadataHandler serves the views metadata document.
func (m *MockSoda) metadataHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.MetadataCount++
	status := m.MetadataStatus
	body := m.MetadataBody
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// pageOf slices records like the SODA $limit/$offset parameters do.
func pageOf(records []map[string]string, offset, limit int) []map[string]string {
	if offset >= len(records) {
		return []map[string]string{}
	}
	end := offset + limit
	if limit <= 0 || end > len(records) {
		end = len(records)
	}
	return records[offset:end]
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": true, "message": "Internal error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response carrying a
// Retry-After header.
func NewRateLimitResponse(retryAfterSeconds int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": true, "message": "Too many requests"}`,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
			"Retry-After":  strconv.Itoa(retryAfterSeconds),
		},
	}
}

// NewBadRequestResponse creates a 400 response like Socrata returns for a
// malformed SoQL expression.
func NewBadRequestResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadRequest,
		Body:       `{"error": true, "message": "Invalid SoQL query"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
