package analytics

import (
	"sort"
	"strings"

	"github.com/benvon/health-chat/internal/models"
)

// DefaultTopInsights is the number of insights surfaced to patients
const DefaultTopInsights = 3

var insightPriorities = []struct {
	score    int
	keywords []string
}{
	{4, []string{"risk", "alert", "warning", "high", "low"}},
	{3, []string{"personalized", "optimal", "target", "best"}},
	{2, []string{"pattern", "timing", "consistency", "trend"}},
}

// InsightPriority scores an insight by the most urgent keyword in its title or detail
func InsightPriority(in models.Insight) int {
	text := strings.ToLower(in.Title + " " + in.Detail)
	for _, p := range insightPriorities {
		for _, kw := range p.keywords {
			if strings.Contains(text, kw) {
				return p.score
			}
		}
	}
	return 1
}

// SelectTopInsights returns the n highest priority insights, keeping the original order
// among insights of equal priority
func SelectTopInsights(insights []models.Insight, n int) []models.Insight {
	if n <= 0 || len(insights) == 0 {
		return nil
	}
	ranked := make([]models.Insight, len(insights))
	copy(ranked, insights)
	sort.SliceStable(ranked, func(i, j int) bool {
		return InsightPriority(ranked[i]) > InsightPriority(ranked[j])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
