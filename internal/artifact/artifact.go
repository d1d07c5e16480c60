// Package artifact renders aggregated pack bundles into their stored output
// formats.
//
// This package defines a Renderer interface implemented by JSONRenderer and
// HTMLRenderer. JSON is the canonical machine-readable artifact; HTML is a
// human-readable summary suitable for direct review.
package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ecocomply/ecocomply/internal/domain"
)

// =============================================================================
// Renderer Interface
// =============================================================================

// Renderer defines the interface for artifact renderers.
// Implementations handle the specifics of each format.
type Renderer interface {
	// Render writes the artifact to w.
	// Returns the number of bytes written and any error.
	Render(ctx context.Context, data *domain.PackArtifact, w io.Writer) (int64, error)

	// Format returns the output format of this renderer.
	Format() domain.ArtifactFormat
}

// ForFormat returns the renderer for the given format.
func ForFormat(format domain.ArtifactFormat) (Renderer, error) {
	switch format {
	case domain.ArtifactFormatJSON:
		return NewJSONRenderer(), nil
	case domain.ArtifactFormatHTML:
		return NewHTMLRenderer(), nil
	default:
		return nil, fmt.Errorf("unsupported artifact format: %s", format)
	}
}

// =============================================================================
// JSON Renderer
// =============================================================================

// JSONRenderer renders the canonical machine-readable artifact.
type JSONRenderer struct{}

// NewJSONRenderer creates a new JSON renderer.
func NewJSONRenderer() *JSONRenderer {
	return &JSONRenderer{}
}

// Format returns the output format of this renderer.
func (r *JSONRenderer) Format() domain.ArtifactFormat {
	return domain.ArtifactFormatJSON
}

// Render writes the artifact as indented JSON. The encoding is stable for a
// given artifact, so re-rendering an unchanged pack produces an identical
// object.
func (r *JSONRenderer) Render(ctx context.Context, data *domain.PackArtifact, w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	enc := json.NewEncoder(cw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return cw.n, fmt.Errorf("encode artifact: %w", err)
	}
	return cw.n, nil
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
