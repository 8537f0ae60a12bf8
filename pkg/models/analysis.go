package models

// AnalysisReport is the canonical critique produced by the analysis service.
// Mode-specific response shapes are normalized into this struct at the client
// boundary, so the job state machine and the store never see format drift.
type AnalysisReport struct {
	Advisor    string   `json:"advisor"`
	Mode       string   `json:"mode"`
	Critique   string   `json:"critique"`
	Score      float64  `json:"score,omitempty"`
	Techniques []string `json:"techniques,omitempty"`
	References []string `json:"references,omitempty"`
	Model      string   `json:"model,omitempty"`
}
