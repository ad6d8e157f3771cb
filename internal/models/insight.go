package models

// InsightCategory groups insights by the record kind they were derived from
type InsightCategory string

const (
	InsightCategoryGlucose    InsightCategory = "glucose"
	InsightCategoryActivity   InsightCategory = "activity"
	InsightCategoryWeight     InsightCategory = "weight"
	InsightCategoryMedication InsightCategory = "medication"
	InsightCategoryGeneral    InsightCategory = "general"
)

// Insight is a derived, human-readable finding. Insights are regenerated on every request.
type Insight struct {
	Title    string          `json:"title"`
	Detail   string          `json:"detail"`
	Category InsightCategory `json:"category"`
	// Source is a short machine label (e.g. "glucose-trend") used when citing the insight
	Source string `json:"source"`
}
