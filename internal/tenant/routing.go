// ABOUTME: Smart model routing based on inbound message analysis.
// ABOUTME: Picks vision or long-context overrides before falling back to the primary model.

package tenant

// MessageAnalysis is the result of analyzing an inbound message for routing.
type MessageAnalysis struct {
	HasImages       bool
	EstimatedTokens int
	SentimentScore  float64 // -1.0 (angry) to 1.0 (happy)
}

// RouteDecision pairs the selected model with a human-readable reason.
type RouteDecision struct {
	Model  string
	Reason string
}

// PickModel selects a model for a message.
//
// Priority:
//  1. Vision model if images detected and a vision model is configured
//  2. Long-context model if the token estimate exceeds the threshold
//  3. Primary model
func PickModel(routing ModelRouting, analysis MessageAnalysis) RouteDecision {
	if analysis.HasImages && routing.VisionModel != "" {
		return RouteDecision{Model: routing.VisionModel, Reason: "vision: images detected"}
	}

	threshold := routing.LongContextThreshold
	if threshold == 0 {
		threshold = DefaultLongContextThreshold
	}
	if analysis.EstimatedTokens > threshold && routing.LongContextModel != "" {
		return RouteDecision{Model: routing.LongContextModel, Reason: "long-context: token estimate over threshold"}
	}

	return RouteDecision{Model: routing.Primary, Reason: "default: text-only"}
}
