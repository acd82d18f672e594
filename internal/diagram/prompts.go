package diagram

import (
	"strings"
	"text/template"
)

const (
	generateSystemPrompt = "You generate ONLY raw Mermaid code with no backticks or commentary. Return valid Mermaid for the requested kind."
	editSystemPrompt     = "You are a Mermaid diagram editor. You receive an existing diagram and modification instructions. Return ONLY the updated raw Mermaid code with no backticks or commentary. Preserve the original structure while applying the requested changes."
	repairSystemPrompt   = "You are a Mermaid diagram syntax expert. Return ONLY the corrected raw Mermaid code with no backticks or commentary."

	maxContextLines = 3
)

type generatePromptFields struct {
	Keyword  string
	Guidance []string
	Hints    []string
	Prompt   string
}

const generatePrompt = `Generate a Mermaid diagram of kind: {{ .Keyword }}
Constraints:
- Output ONLY raw Mermaid source. No code fences, no prose.
- The first line must be the {{ .Keyword }} declaration.
- Keep it compact but self-explanatory with labels.
- Use ASCII-safe characters only.
{{- range .Guidance }}
- {{ . }}
{{- end }}
{{- if .Hints }}

Avoid these issues reported on earlier diagrams:
{{- range .Hints }}
- {{ . }}
{{- end }}
{{- end }}

Domain prompt:
{{ .Prompt }}`

var generatePromptTmpl = template.Must(template.New("generatePrompt").Parse(generatePrompt))

type editPromptFields struct {
	Keyword     string
	Current     string
	Context     string
	Instruction string
	Hints       []string
}

const editPrompt = `Current {{ .Keyword }} diagram:
{{ .Current }}

Recent conversation context:
{{ .Context }}
{{- if .Hints }}

Avoid these issues reported on earlier edits:
{{- range .Hints }}
- {{ . }}
{{- end }}
{{- end }}

Modification request: {{ .Instruction }}

Please update the diagram according to the request.`

var editPromptTmpl = template.Must(template.New("editPrompt").Parse(editPrompt))

type repairPromptFields struct {
	Keyword  string
	Prompt   string
	Invalid  string
	Reason   string
	Guidance []string
}

const repairPrompt = `Fix the following invalid Mermaid diagram.

DIAGRAM TYPE: {{ .Keyword }}
ORIGINAL PROMPT: {{ .Prompt }}

INVALID MERMAID CODE:
{{ .Invalid }}

The previous output was invalid because: {{ .Reason }}

Rules for {{ .Keyword }}:
- The first line must be the {{ .Keyword }} declaration.
{{- range .Guidance }}
- {{ . }}
{{- end }}

Fix the error while preserving the meaning and structure of the diagram and produce corrected output.`

var repairPromptTmpl = template.Must(template.New("repairPrompt").Parse(repairPrompt))

// BuildPrompt selects and fills the instruction template for req: a repair
// instruction when req.Invalid is set, an edit instruction when req.Prior is
// set and a plain generation instruction otherwise.
func BuildPrompt(req Request, hints []string) (Prompt, error) {
	spec, ok := catalog[req.Kind]
	if !ok {
		return Prompt{}, ErrUnknownKind
	}

	prompt := Prompt{Kind: req.Kind, Subject: req.Prompt, Prior: req.Prior, Edit: req.Instruction}

	user := new(strings.Builder)
	var err error
	switch {
	case req.Invalid != nil:
		prompt.System = repairSystemPrompt
		prompt.Repair = true
		err = repairPromptTmpl.Execute(user, repairPromptFields{
			Keyword:  spec.keyword,
			Prompt:   req.Prompt,
			Invalid:  req.Invalid.Text,
			Reason:   req.Invalid.Reason,
			Guidance: spec.guidance,
		})
	case req.Prior != "":
		prompt.System = editSystemPrompt
		err = editPromptTmpl.Execute(user, editPromptFields{
			Keyword:     spec.keyword,
			Current:     req.Prior,
			Context:     strings.Join(lastN(req.Conversation, maxContextLines), "\n"),
			Instruction: req.Instruction,
			Hints:       hints,
		})
	default:
		prompt.System = generateSystemPrompt
		err = generatePromptTmpl.Execute(user, generatePromptFields{
			Keyword:  spec.keyword,
			Guidance: spec.guidance,
			Hints:    hints,
			Prompt:   req.Prompt,
		})
	}
	if err != nil {
		return Prompt{}, err
	}

	prompt.User = user.String()
	return prompt, nil
}

func lastN(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
