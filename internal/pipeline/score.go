package pipeline

import "adora/internal/domain"

// AestheticScore is a layout heuristic in [0, 1]: fewer text blocks score
// higher and a single hero packshot earns a bonus.
func AestheticScore(c domain.CreativeCanvas) float64 {
	score := 0.5
	score += max(0, 0.3-0.05*float64(len(c.TextBlocks)))
	if len(c.PackshotIDs) == 1 {
		score += 0.1
	}
	return min(1, max(0, score))
}
