package extract

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptTemplates = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

type keywordsPromptData struct {
	Text       string
	LinksCount int
	LinksJSON  string
}

type headingsPromptData struct {
	Text         string
	HeadingCount int
	HeadingLimit int
	HeadingsJSON string
}

func renderPrompt(name string, data any) (string, error) {
	var b strings.Builder
	if err := promptTemplates.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("extract: render %s: %w", name, err)
	}
	return b.String(), nil
}
