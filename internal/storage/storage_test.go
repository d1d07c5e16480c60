package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestPackKey_Deterministic(t *testing.T) {
	companyID := uuid.New()
	packID := uuid.New()

	first := PackKey(companyID, packID, "json")
	second := PackKey(companyID, packID, "json")

	// A retried generation job must target the same key so it overwrites
	// its own partial upload.
	if first != second {
		t.Errorf("PackKey not deterministic: %q vs %q", first, second)
	}
	want := "companies/" + companyID.String() + "/packs/" + packID.String() + ".json"
	if first != want {
		t.Errorf("PackKey = %q, want %q", first, want)
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name     string
		provided string
		filename string
		data     string
		want     string
	}{
		{"provided type wins", "application/json", "artifact.html", "", "application/json"},
		{"json artifact by extension", "", PackKey(uuid.New(), uuid.New(), "json"), "", "application/json"},
		{"sniffed html bundle", "", "artifact", "<!DOCTYPE html><html><head>", "text/html; charset=utf-8"},
		{"unknown falls back to binary", "", "artifact", "", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var data io.Reader
			if tt.data != "" {
				data = strings.NewReader(tt.data)
			}
			got := DetectContentType(tt.provided, tt.filename, data)
			if !strings.HasPrefix(got, strings.Split(tt.want, ";")[0]) {
				t.Errorf("DetectContentType = %q, want %q", got, tt.want)
			}
		})
	}
}
