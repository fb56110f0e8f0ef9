package generate

import (
	"fmt"
	"strings"

	"pagesmith/app/pkg/types"
)

// readmeMarker separates the markup document from the readme document in
// one generation response.
const readmeMarker = "---README---"

// splitResponse extracts the two artifacts from raw generated text.
// Without the marker the whole text is the markup document and the
// readme is synthesized.
func splitResponse(text string, in Input, attachments []types.DecodedAttachment) types.ArtifactSet {
	markup, readme, found := strings.Cut(text, readmeMarker)
	if !found {
		markup = text
		readme = fallbackReadme(in, attachments)
	}
	return types.ArtifactSet{
		Markup: stripCodeFence(strings.TrimSpace(markup)),
		Readme: stripCodeFence(strings.TrimSpace(readme)),
	}
}

// stripCodeFence removes a single wrapping fenced code block. The opening
// line may carry a language tag; only a trailing line that is exactly a
// fence is dropped.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// fallbackPage is the locally synthesized application used when every
// provider fails. It contains the marker so the split contract holds on
// this path too.
func fallbackPage(in Input) string {
	var checksHTML strings.Builder
	for _, check := range in.Checks {
		fmt.Fprintf(&checksHTML, "<li>%s</li>", check)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Fallback App</title>
    <link href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.0/dist/css/bootstrap.min.css" rel="stylesheet">
</head>
<body>
    <div class="container mt-5">
        <h1>Application (Fallback Mode)</h1>
        <div class="alert alert-warning">
            This is a fallback page generated because the LLM APIs were unavailable.
        </div>
        <h2>Brief</h2>
        <p>%s</p>
        <h2>Checks to Implement</h2>
        <ul>%s</ul>
    </div>
</body>
</html>
%s
%s`, in.Brief, checksHTML.String(), readmeMarker, fallbackReadme(in, nil))
}

// fallbackReadme deterministically documents the app when the response
// carried no readme of its own.
func fallbackReadme(in Input, attachments []types.DecodedAttachment) string {
	var attList strings.Builder
	for _, att := range attachments {
		fmt.Fprintf(&attList, "- %s\n", att.Name)
	}
	var checksList strings.Builder
	for _, check := range in.Checks {
		fmt.Fprintf(&checksList, "- %s\n", check)
	}

	attachmentsSection := "None"
	if attList.Len() > 0 {
		attachmentsSection = strings.TrimRight(attList.String(), "\n")
	}

	return fmt.Sprintf(`# Auto-Generated Application (Round %d)

## Overview
%s

## Attachments
%s

## Evaluation Checks
%s

## Usage
1. Open the application page in a web browser
2. The application should be fully functional

## Technical Details
- Single-page application
- No build process required
- All dependencies loaded from CDN

## License
MIT License
`, in.Round, in.Brief, attachmentsSection, strings.TrimRight(checksList.String(), "\n"))
}
