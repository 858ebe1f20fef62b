package prompt

import "github.com/kapu/adgenius-go/internal/domain"

type productAnalysisData struct {
	Name           string
	Description    string
	TargetAudience string
	Benefits       string
	JSONShapeHint  bool
}

// BuildProductAnalysisPrompt renders the analysis instruction for input.
// withShapeHint appends an inline JSON skeleton for providers that cannot
// take a response schema.
func BuildProductAnalysisPrompt(input domain.ProductInput, withShapeHint bool) (Rendered, error) {
	return DefaultPromptBuilder().Render(TemplateProductAnalysis, productAnalysisData{
		Name:           input.Name,
		Description:    input.Description,
		TargetAudience: input.TargetAudience,
		Benefits:       input.JoinedBenefits(),
		JSONShapeHint:  withShapeHint,
	})
}
