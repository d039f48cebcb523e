// ABOUTME: Tests for smart model routing decisions.
// ABOUTME: Covers vision override, long-context override, and primary fallback.

package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPickModel(t *testing.T) {
	routing := ModelRouting{
		Primary:              "azure/gpt-4o",
		Fallbacks:            []string{"anthropic/claude-sonnet"},
		VisionModel:          "openai/gpt-4o-vision",
		LongContextModel:     "google/gemini-pro",
		LongContextThreshold: 100_000,
	}

	tests := []struct {
		name     string
		analysis MessageAnalysis
		want     string
	}{
		{
			name:     "text-only picks primary",
			analysis: MessageAnalysis{},
			want:     "azure/gpt-4o",
		},
		{
			name:     "images pick vision model",
			analysis: MessageAnalysis{HasImages: true},
			want:     "openai/gpt-4o-vision",
		},
		{
			name:     "large context picks long-context model",
			analysis: MessageAnalysis{EstimatedTokens: 150_000},
			want:     "google/gemini-pro",
		},
		{
			name:     "vision wins over long context",
			analysis: MessageAnalysis{HasImages: true, EstimatedTokens: 150_000},
			want:     "openai/gpt-4o-vision",
		},
		{
			name:     "threshold is exclusive",
			analysis: MessageAnalysis{EstimatedTokens: 100_000},
			want:     "azure/gpt-4o",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickModel(routing, tt.analysis)
			assert.Equal(t, tt.want, got.Model)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestPickModelWithoutOverrides(t *testing.T) {
	routing := ModelRouting{Primary: "azure/gpt-4o"}

	// No vision model configured: images still go to primary.
	got := PickModel(routing, MessageAnalysis{HasImages: true})
	assert.Equal(t, "azure/gpt-4o", got.Model)

	// No long-context model configured: big contexts still go to primary.
	got = PickModel(routing, MessageAnalysis{EstimatedTokens: 1_000_000})
	assert.Equal(t, "azure/gpt-4o", got.Model)
}

func TestPickModelDefaultThreshold(t *testing.T) {
	routing := ModelRouting{
		Primary:          "azure/gpt-4o",
		LongContextModel: "google/gemini-pro",
	}

	// Threshold left zero falls back to the default.
	got := PickModel(routing, MessageAnalysis{EstimatedTokens: DefaultLongContextThreshold + 1})
	assert.Equal(t, "google/gemini-pro", got.Model)

	got = PickModel(routing, MessageAnalysis{EstimatedTokens: DefaultLongContextThreshold})
	assert.Equal(t, "azure/gpt-4o", got.Model)
}
