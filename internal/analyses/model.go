package analyses

import "time"

// AnalysisResult is one completed pipeline run for a document. Results are
// append-only: re-analysis adds a new row.
type AnalysisResult struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id"`
	ExtractedInfo   any       `json:"extracted_info"`
	RisksIdentified any       `json:"risks_identified"`
	Summary         string    `json:"summary"`
	AnalysisDate    time.Time `json:"analysis_date"`
	ProcessingTime  int       `json:"processing_time"`
}

// Output is what a run returns to its caller.
type Output struct {
	KeyInformation any    `json:"key_information"`
	RiskAssessment any    `json:"risk_assessment"`
	Summary        string `json:"summary"`
}
