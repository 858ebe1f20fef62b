package analysis

import (
	"context"
	stderrors "errors"

	"github.com/kapu/adgenius-go/internal/constants"
	"github.com/kapu/adgenius-go/internal/domain"
	"github.com/kapu/adgenius-go/internal/prompt"
	"github.com/kapu/adgenius-go/internal/service/ai"
	"github.com/kapu/adgenius-go/pkg/errors"
	"go.uber.org/zap"
)

const stageAnalysis = "analysis"

// JSONGenerator is the part of ai.ModelManager the analyzer needs.
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, req ai.JSONRequest, dest any) (*ai.GenerateMetadata, error)
}

type Analyzer struct {
	generator JSONGenerator
	model     string
	logger    *zap.Logger
}

func NewAnalyzer(generator JSONGenerator, model string, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		generator: generator,
		model:     model,
		logger:    logger,
	}
}

// Analyze validates input, asks the model for a JTBD breakdown and content
// strategy, and returns the parsed result. No request is sent when name or
// description is empty.
func (a *Analyzer) Analyze(ctx context.Context, input domain.ProductInput) (*domain.AnalysisResult, error) {
	if err := Validate(input); err != nil {
		return nil, err
	}

	rendered, err := prompt.BuildProductAnalysisPrompt(input, false)
	if err != nil {
		return nil, errors.NewGenerationError(constants.Messages.AnalysisFailed, errors.CodeAnalysisFailed, stageAnalysis, err)
	}
	fallbackPrompt, err := prompt.BuildProductAnalysisPrompt(input, true)
	if err != nil {
		return nil, errors.NewGenerationError(constants.Messages.AnalysisFailed, errors.CodeAnalysisFailed, stageAnalysis, err)
	}

	var result domain.AnalysisResult
	meta, err := a.generator.GenerateJSON(ctx, ai.JSONRequest{
		Prompt:         rendered.User,
		FallbackPrompt: fallbackPrompt.User,
		System:         rendered.System,
		Schema:         ResponseSchema(),
		Model:          a.model,
	}, &result)
	if err != nil {
		if stderrors.Is(err, ai.ErrInvalidJSON) {
			a.logger.Warn("Analysis response unusable", zap.String("product", input.Name), zap.Error(err))
			return nil, errors.NewGenerationError(constants.Messages.UnusableResponse, errors.CodeUnusableResponse, stageAnalysis, err)
		}
		a.logger.Error("Analysis request failed", zap.String("product", input.Name), zap.Error(err))
		return nil, errors.NewGenerationError(constants.Messages.AnalysisFailed, errors.CodeAnalysisFailed, stageAnalysis, err)
	}

	a.logger.Info("Analysis completed",
		zap.String("product", input.Name),
		zap.String("provider", meta.Provider),
		zap.String("model", meta.Model),
		zap.Bool("used_fallback", meta.UsedFallback),
		zap.Int("visual_keywords", len(result.Strategy.VisualKeywords)),
	)

	return &result, nil
}

// Validate enforces the form's required fields.
func Validate(input domain.ProductInput) error {
	if input.HasRequiredFields() {
		return nil
	}
	field := "name"
	if input.Name != "" {
		field = "description"
	}
	return errors.NewValidationError(constants.Messages.ValidationMissingFields, field, "")
}

// UserMessage returns the message the form shows for an Analyze error.
func UserMessage(err error) string {
	var val *errors.ValidationError
	if stderrors.As(err, &val) {
		return val.Message
	}
	return constants.Messages.AnalysisFailed
}
