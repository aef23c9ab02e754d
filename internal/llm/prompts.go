package llm

import (
	"fmt"
	"strings"
	"text/template"
)

// PromptID names a prompt template.
type PromptID string

const (
	PromptMaterialAmount PromptID = "material_amount"
	PromptCO2            PromptID = "co2"
	PromptCommercialInfo PromptID = "commercial_info"
	PromptDetectDevice   PromptID = "detect_device"
)

// SystemPrompt is sent with every text completion.
const SystemPrompt = `You are an expert in the bill of materials and life-cycle assessment of consumer electronic devices.
Always answer with a single JSON object and nothing else: no prose, no markdown.`

var defaultPrompts = map[PromptID]string{
	PromptMaterialAmount: `What is the amount of {{.material}} contained in a {{.device}}?

Format the output as JSON like
{ "materialCode": "{{.material}}", "amount": amount }
The amount must be in grams and as accurate as possible.
Do not specify the unit of measure in the output.`,

	PromptCO2: `What is the carbon footprint of the {{.device}}?

Format the output as JSON like
{ "co2Emission": value }
The value must be in kg of CO2 equivalent.
Do not specify the unit of measure in the output.`,

	PromptCommercialInfo: `What are the manufacturer and the commercial name of {{.device}}?

Format the output as JSON like
{ "manufacturer": "manufacturerName", "commercialName": "commercialName" }`,

	PromptDetectDevice: `Describe in maximum 3 words the object that is present in the image.
Try to be specific about the name and the model. Do not include any description of the color of the object.`,
}

// Prompts renders prompt templates by id. It is built once at startup and is
// safe for concurrent use (text/template execution does not mutate the template).
type Prompts struct {
	templates map[PromptID]*template.Template
}

// NewPrompts compiles the built-in templates, replacing any whose id appears in overrides.
func NewPrompts(overrides map[string]string) (*Prompts, error) {
	sources := make(map[PromptID]string, len(defaultPrompts))
	for id, src := range defaultPrompts {
		sources[id] = src
	}
	for key, src := range overrides {
		id := PromptID(strings.ToLower(key))
		if _, ok := defaultPrompts[id]; !ok {
			return nil, fmt.Errorf("unknown prompt id %q", key)
		}
		sources[id] = src
	}

	p := &Prompts{templates: make(map[PromptID]*template.Template, len(sources))}
	for id, src := range sources {
		// missingkey=error turns a forgotten variable into an error instead of "<no value>".
		tmpl, err := template.New(string(id)).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing prompt %s: %w", id, err)
		}
		p.templates[id] = tmpl
	}
	return p, nil
}

// Render fills the template id with vars.
func (p *Prompts) Render(id PromptID, vars map[string]string) (string, error) {
	tmpl, ok := p.templates[id]
	if !ok {
		return "", fmt.Errorf("unknown prompt id %q", id)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", id, err)
	}
	return sb.String(), nil
}
