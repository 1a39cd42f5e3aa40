package models

// Stage is a pipeline state for one request.
type Stage string

const (
	StageIdentityPending Stage = "identity_pending"
	StageIdentified      Stage = "identified"
	StageCached          Stage = "cached"
	StageSynthesizing    Stage = "synthesizing"
	StageExecuted        Stage = "executed"
	StageNarrated        Stage = "narrated"
	StageFailed          Stage = "failed"
)

// Answer is the successful outcome of one question.
type Answer struct {
	RequestID    string         `json:"requestId"`
	Narration    string         `json:"narration"`
	Data         ResultSet      `json:"data"`
	QueryUsed    string         `json:"queryUsed"`
	Source       QuerySource    `json:"source"`
	TemplateName string         `json:"templateName,omitempty"`
	Identity     Identity       `json:"identity"`
	Intent       IntentCategory `json:"intent"`
	Trace        []Stage        `json:"trace"`
}
