package generate

import (
	"fmt"
	"strings"

	"pagesmith/app/pkg/types"
)

const systemInstruction = "You are an expert web developer. Generate clean, minimal, working HTML/CSS/JS code that meets requirements exactly."

// prevMarkupLimit bounds how much of the previous version is replayed
// into the prompt.
const prevMarkupLimit = 10000

// buildPrompt assembles the full generation prompt. The previous-version
// section appears only for round 2+ when prior content was fetched.
func buildPrompt(in Input, attachments []types.DecodedAttachment) string {
	var attInfo strings.Builder
	for _, att := range attachments {
		fmt.Fprintf(&attInfo, "- %s (%s): %s\n", att.Name, att.MIME, att.Preview)
	}

	var checksInfo strings.Builder
	for _, check := range in.Checks {
		fmt.Fprintf(&checksInfo, "- %s\n", check)
	}

	context := ""
	if in.Round >= 2 && (in.PrevReadme != "" || in.PrevMarkup != "") {
		var b strings.Builder
		b.WriteString("\n## Previous Version Context\nThe app already exists. Here's what was generated in the previous round:\n")
		if in.PrevReadme != "" {
			fmt.Fprintf(&b, "\n### Previous README:\n%s\n", in.PrevReadme)
		}
		if in.PrevMarkup != "" {
			markup := in.PrevMarkup
			if len(markup) > prevMarkupLimit {
				markup = markup[:prevMarkupLimit] + "\n... (truncated for brevity) ..."
			}
			fmt.Fprintf(&b, "\n### Previous HTML Code:\n```html\n%s\n```\n", markup)
		}
		b.WriteString(`
Your task is to UPDATE the existing app based on the new requirements below.
- Maintain the existing structure and styling where appropriate
- Add or modify features as requested in the new brief
- Keep any functionality that's still relevant
- Improve upon the previous version
`)
		context = b.String()
	}

	attachmentsSection := "None"
	if attInfo.Len() > 0 {
		attachmentsSection = strings.TrimRight(attInfo.String(), "\n")
	}

	return fmt.Sprintf(`Create a complete single-page web application.

## Round %d
%s
## Brief
%s

## Attachments Available
%s

## Evaluation Checks
%s

## Output Requirements
1. Generate a SINGLE HTML file with inline CSS and JavaScript
2. The app must be fully functional and meet ALL evaluation checks
3. Use CDN links for any libraries (Bootstrap, marked, highlight.js, etc.)
4. After the HTML, add a line "%s" and then provide a complete README.md

## README.md Must Include
- Project title and overview
- Features list
- How to use
- Technical details (libraries used, structure)
- License (MIT)

Output format:
`+"```html"+`
<!DOCTYPE html>
<html>
...
</html>
%s
# Project Title
...
`+"```"+`

Generate the code now:`,
		in.Round, context, in.Brief, attachmentsSection,
		strings.TrimRight(checksInfo.String(), "\n"), readmeMarker, readmeMarker)
}
