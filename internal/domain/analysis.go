package domain

// JTBDAnalysis is the Job-To-Be-Done breakdown returned by the language model.
type JTBDAnalysis struct {
	FunctionalJob string `json:"functionalJob"`
	EmotionalJob  string `json:"emotionalJob"`
	SocialJob     string `json:"socialJob"`
	MainInsight   string `json:"mainInsight"`
}

// ContentStrategy holds the creative output derived from the JTBD breakdown.
type ContentStrategy struct {
	ThreeSecondHook string   `json:"threeSecondHook"`
	Caption         string   `json:"caption"`
	VideoPrompt     string   `json:"videoPrompt"`
	VisualKeywords  []string `json:"visualKeywords"`
}

type AnalysisResult struct {
	JTBD     JTBDAnalysis    `json:"jtbd"`
	Strategy ContentStrategy `json:"strategy"`
}

// Clone returns a deep copy.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	out.Strategy.VisualKeywords = append([]string(nil), r.Strategy.VisualKeywords...)
	return &out
}
