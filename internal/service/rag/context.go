package rag

import (
	"fmt"
	"strings"

	"github.com/pearcircuitmike/replicate-codex/internal/models"
)

// NoContextPlaceholder is returned when nothing relevant was retrieved.
const NoContextPlaceholder = "No relevant papers or models were found."

const promptPreamble = `You are an assistant for an AI research discovery site. ` +
	`Answer using the retrieved papers and models below when they are relevant. ` +
	`If the context does not cover the question, say so instead of inventing sources.`

// FormatContext renders retrieved catalog items as a deterministic text
// block: one section header per type, one paragraph per item. Missing fields
// degrade to placeholder text; there is no error path.
func FormatContext(papers []models.Paper, aiModels []models.Model) string {
	if len(papers) == 0 && len(aiModels) == 0 {
		return NoContextPlaceholder
	}

	var b strings.Builder
	if len(papers) > 0 {
		b.WriteString("## Relevant research papers\n\n")
		for _, p := range papers {
			writeItem(&b, p.Title, p.Abstract, p.URL)
		}
	}
	if len(aiModels) > 0 {
		b.WriteString("## Relevant AI models\n\n")
		for _, m := range aiModels {
			writeItem(&b, m.Name, m.Description, m.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeItem(b *strings.Builder, title, description, url string) {
	if strings.TrimSpace(title) == "" {
		title = "Unknown"
	}
	if strings.TrimSpace(description) == "" {
		description = "No description."
	}
	fmt.Fprintf(b, "### %s\n%s\n", title, description)
	if url != "" {
		fmt.Fprintf(b, "%s\n", url)
	}
	b.WriteString("\n")
}

// BuildPrompt concatenates the instruction preamble, the context block, and
// the user's literal query into a single system prompt.
func BuildPrompt(contextBlock, query string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\nContext:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nUser question: ")
	b.WriteString(query)
	return b.String()
}
