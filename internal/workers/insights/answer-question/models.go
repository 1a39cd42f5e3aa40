package answerquestion

import (
	"brokerage-insights/internal/models"
	"brokerage-insights/internal/pipeline/rolepolicy"
)

type Input struct {
	Question  string `json:"question"`
	CallerID  string `json:"callerId,omitempty"`
	Utterance string `json:"utterance,omitempty"`
}

type Output struct {
	Answered     bool              `json:"answered"`
	Message      string            `json:"message"`
	RequestID    string            `json:"requestId,omitempty"`
	ErrorCode    string            `json:"errorCode,omitempty"`
	Source       string            `json:"source,omitempty"`
	TemplateName string            `json:"templateName,omitempty"`
	Intent       string            `json:"intent,omitempty"`
	QueryUsed    string            `json:"queryUsed,omitempty"`
	UserID       string            `json:"userId,omitempty"`
	Role         string            `json:"role,omitempty"`
	RowCount     int               `json:"rowCount"`
	Data         *models.ResultSet `json:"data,omitempty"`

	Permissions *rolepolicy.Permissions `json:"permissions,omitempty"`
}
