package model

// SubjectAggregate holds the accumulated signals of one subject.
type SubjectAggregate struct {
	Subject      string  `json:"domain"`
	Observations int     `json:"observations"`
	Citations    int     `json:"citation_count"`
	AvgDrift     float64 `json:"avg_drift"`
}

// BrandScore is one entry of a computed ranking.
type BrandScore struct {
	Subject        string  `json:"domain"`
	Rank           int     `json:"rank"`
	Score          float64 `json:"score"`
	CitationCount  int     `json:"citation_count"`
	AvgDrift       float64 `json:"avg_drift"`
	StabilityScore float64 `json:"stability_score"`
}
