package gemini

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/phrazzld/taskgate/internal/translation"
)

const promptText = `Translate the text between the markers from {{.Source}} to {{.Target}}.
Reply with the translation only, without quotes, notes or the markers.
Keep the original capitalization style and punctuation.
<<<
{{.Text}}
>>>`

var promptTemplate = template.Must(template.New("translate").Parse(promptText))

type promptData struct {
	Text   string
	Source string
	Target string
}

func renderPrompt(text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text cannot be empty", translation.ErrTranslationFailed)
	}

	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, promptData{Text: text, Source: source, Target: target}); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return buf.String(), nil
}
