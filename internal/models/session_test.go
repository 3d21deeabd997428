package models_test

import (
	"testing"

	"github.com/MegaGrindStone/idea-generator/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
		want     bool
	}{
		{name: "premium", metadata: map[string]any{"subscription": "premium_subscription"}, want: true},
		{name: "other tier", metadata: map[string]any{"subscription": "free"}, want: false},
		{name: "wrong type", metadata: map[string]any{"subscription": 1}, want: false},
		{name: "no metadata", metadata: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := models.User{ID: "user_1", PublicMetadata: tt.metadata}
			s := models.Session{Loaded: true, SignedIn: true, User: u, Capabilities: models.CapabilitiesFor(u)}
			assert.Equal(t, tt.want, s.Can(models.CapabilityGenerate))
		})
	}
}

func TestIdeaVariants(t *testing.T) {
	assert.NotEqual(t, models.LoadingIdea(), models.ContentIdea(""))
	assert.Equal(t, models.IdeaStatusAuthRequired, models.AuthRequiredIdea().Status)
	assert.Equal(t, "generator", models.ViewGenerator.String())
}
