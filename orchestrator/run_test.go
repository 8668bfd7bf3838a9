// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSplitNonEmpty(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string", "", nil},
		{"single id", "pg-main", []string{"pg-main"}},
		{"multiple ids", "pg-main,mongo-1,redis-cache", []string{"pg-main", "mongo-1", "redis-cache"}},
		{"trailing comma dropped", "pg-main,", []string{"pg-main"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitNonEmpty(tt.input, ",")
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, got)
				}
			}
		})
	}
}

func TestNewAdapterInstance(t *testing.T) {
	tests := []struct {
		kind     string
		wantNil  bool
	}{
		{"postgres", false},
		{"relational", false},
		{"mongodb", false},
		{"document", false},
		{"redis", false},
		{"vector", false},
		{"cache", false},
		{"mysql", true},
		{"s3", true},
		{"unknown", true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			adapter := newAdapterInstance(tt.kind)
			if tt.wantNil && adapter != nil {
				t.Errorf("expected nil adapter for kind %q", tt.kind)
			}
			if !tt.wantNil && adapter == nil {
				t.Errorf("expected non-nil adapter for kind %q", tt.kind)
			}
		})
	}
}

func TestFirstRole(t *testing.T) {
	if got := firstRole(nil); got != "" {
		t.Errorf("expected empty string for nil roles, got %q", got)
	}
	if got := firstRole([]string{"admin", "viewer"}); got != "admin" {
		t.Errorf("expected first role 'admin', got %q", got)
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusTeapot, map[string]string{"status": "brewing"})

	if w.Code != http.StatusTeapot {
		t.Errorf("expected status %d, got %d", http.StatusTeapot, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json content type, got %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Error("expected non-empty body")
	}
}

func TestSchedulerOptions_NilConfig(t *testing.T) {
	if opts := schedulerOptions(nil); opts != nil {
		t.Errorf("expected nil options for nil config, got %v", opts)
	}
}

func TestSchedulerOptions_FromConfig(t *testing.T) {
	cfg := &Config{
		Scheduler: SchedulerConfig{
			SourceLimits: map[string]int{"postgres": 4},
			GlobalCap:    10,
			WeightCap:    2,
		},
	}
	opts := schedulerOptions(cfg)
	if len(opts) != 3 {
		t.Fatalf("expected 3 scheduler options (source limit, global cap, weight cap), got %d", len(opts))
	}
}
