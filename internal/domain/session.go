package domain

import "time"

// SessionSnapshot is the externally visible state of a form session.
type SessionSnapshot struct {
	ID            string          `json:"id"`
	Phase         Phase           `json:"phase"`
	Product       ProductInput    `json:"product"`
	Result        *AnalysisResult `json:"result,omitempty"`
	VideoURL      string          `json:"videoUrl,omitempty"`
	ErrorMessage  string          `json:"error,omitempty"`
	ErrorCode     string          `json:"errorCode,omitempty"`
	ShowKeyDialog bool            `json:"showKeyDialog"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
