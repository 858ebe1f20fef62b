package analysis

import "google.golang.org/genai"

func stringSchema() *genai.Schema {
	return &genai.Schema{Type: genai.TypeString}
}

// ResponseSchema is the structure the language model must answer with.
func ResponseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"jtbd": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"functionalJob": stringSchema(),
					"emotionalJob":  stringSchema(),
					"socialJob":     stringSchema(),
					"mainInsight":   stringSchema(),
				},
				Required: []string{"functionalJob", "emotionalJob", "socialJob", "mainInsight"},
			},
			"strategy": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"threeSecondHook": stringSchema(),
					"caption":         stringSchema(),
					"videoPrompt":     stringSchema(),
					"visualKeywords": {
						Type:  genai.TypeArray,
						Items: stringSchema(),
					},
				},
				Required: []string{"threeSecondHook", "caption", "videoPrompt", "visualKeywords"},
			},
		},
		Required: []string{"jtbd", "strategy"},
	}
}
