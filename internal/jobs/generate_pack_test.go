package jobs

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecocomply/ecocomply/internal/domain"
	"github.com/ecocomply/ecocomply/internal/worker"
)

func TestGeneratePackHandler_Type(t *testing.T) {
	h := NewGeneratePackHandler(nil, nil, nil, nil, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	assert.Equal(t, worker.JobTypeGeneratePack, h.Type())
}

func TestGeneratePackHandler_DefaultsToJSONRenderer(t *testing.T) {
	h := NewGeneratePackHandler(nil, nil, nil, nil, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	assert.Equal(t, domain.ArtifactFormatJSON, h.renderer.Format())
}

func TestGeneratePackHandler_InvalidPayloadIsPermanent(t *testing.T) {
	// A payload that cannot be decoded will never decode on retry either.
	h := NewGeneratePackHandler(nil, nil, nil, nil, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	err := h.Handle(context.Background(), []byte("{not json"))
	assert.Error(t, err)
	assert.True(t, worker.IsPermanent(err))
}
