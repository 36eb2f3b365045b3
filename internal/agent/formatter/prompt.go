package formatter

import (
	"fmt"
	"strings"
	"text/template"
)

// Prompt is the instruction pair sent with every formatting request.
type Prompt struct {
	System       string
	UserTemplate string

	user *template.Template
}

var presets = map[string]Prompt{
	"table": {
		System: "You are an expert in interpreting OCR text and creating structured HTML output. " +
			"Use the provided OCR text and image to construct a meaningful, readable HTML table while preserving the original language.",
		UserTemplate: "OCR Text:\n\n{{.Text}}\n\n" +
			"Interpret this text and format it into a structured HTML table or sections. " +
			"Provide only the HTML without any explaining it. Only the HTML",
	},
	"sections": {
		System: "You are an expert in interpreting OCR text. Turn the provided OCR text into clean, readable HTML " +
			"using headings, paragraphs, lists and tables where they fit. Keep the text in its original language.",
		UserTemplate: "OCR Text:\n\n{{.Text}}\n\n" +
			"Structure this text as HTML sections. Return only the HTML, with no explanation before or after it.",
	},
}

// Preset returns a named built-in prompt.
func Preset(name string) (Prompt, error) {
	p, ok := presets[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt preset %q", name)
	}
	return p.compile()
}

// NewPrompt starts from preset and replaces whichever of system and
// userTemplate are non-empty.
func NewPrompt(preset, system, userTemplate string) (Prompt, error) {
	if preset == "" {
		preset = "table"
	}
	p, ok := presets[preset]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt preset %q", preset)
	}
	if system != "" {
		p.System = system
	}
	if userTemplate != "" {
		p.UserTemplate = userTemplate
	}
	return p.compile()
}

func (p Prompt) compile() (Prompt, error) {
	tmpl, err := template.New("user").Option("missingkey=error").Parse(p.UserTemplate)
	if err != nil {
		return Prompt{}, fmt.Errorf("invalid user prompt template: %w", err)
	}
	p.user = tmpl
	return p, nil
}

// User renders the user message for the extracted text.
func (p Prompt) User(text string) (string, error) {
	if p.user == nil {
		compiled, err := p.compile()
		if err != nil {
			return "", err
		}
		p = compiled
	}
	var b strings.Builder
	if err := p.user.Execute(&b, struct{ Text string }{Text: text}); err != nil {
		return "", fmt.Errorf("failed to render user prompt: %w", err)
	}
	return b.String(), nil
}
