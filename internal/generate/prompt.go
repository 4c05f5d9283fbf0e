package generate

import (
	"fmt"
	"strings"

	"github.com/madigan/contentpipe/internal/content"
)

const bodySystemPrompt = `You are a senior content writer for a home-services website. Write in markdown with ## and ### headings so the article is scannable. Ground every claim in common industry knowledge. Do not invent statistics. Return only the article body, no frontmatter and no title heading.`

const metadataSystemPrompt = `You are an SEO metadata engine. Your output must be ONLY a single valid JSON object conforming to the provided schema. Do not include any other text, prose, or markdown.`

// buildBodyPrompt composes the body-writing messages from the keyword,
// generation settings, and the competitive snapshot.
func buildBodyPrompt(keyword string, opts Options, analysis content.CompetitorAnalysis) []Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write an article about %q.\n", keyword)
	fmt.Fprintf(&sb, "Target length: about %d words. Tone: %s. Reading level: %s.\n", opts.TargetWordCount, opts.Tone, opts.ReadingLevel)

	if len(analysis.CommonTopics) > 0 {
		fmt.Fprintf(&sb, "\nTop-ranking pages cover these topics; cover them better:\n")
		for _, t := range analysis.CommonTopics {
			fmt.Fprintf(&sb, "- %s\n", t)
		}
	}
	if len(analysis.RelatedQuestions) > 0 {
		fmt.Fprintf(&sb, "\nAnswer these questions searchers ask:\n")
		for _, q := range analysis.RelatedQuestions {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}
	if len(analysis.CommonHeadings) > 0 {
		fmt.Fprintf(&sb, "\nCommon structures among competitors: %s.\n", strings.Join(analysis.CommonHeadings, ", "))
	}
	if len(opts.LinkKeywords) > 0 {
		fmt.Fprintf(&sb, "\nWhere natural, mention these phrases verbatim so they can be linked: %s.\n", strings.Join(opts.LinkKeywords, ", "))
	}

	return []Message{
		{Role: "system", Content: bodySystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

// buildMetadataPrompt composes the metadata messages from the keyword and
// the already-written body.
func buildMetadataPrompt(keyword, body string) []Message {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Primary keyword: %q.\n\nArticle body:\n%s\n\n", keyword, body)
	sb.WriteString("Produce the title, excerpt, tags, SEO keywords, and two descriptive image prompts for this article.")

	return []Message{
		{Role: "system", Content: metadataSystemPrompt},
		{Role: "user", Content: sb.String()},
	}
}

// metadataSchema is the strict JSON structure requested for metadata.
func metadataSchema() *Schema {
	str := SchemaProperty{Type: "string"}
	return &Schema{
		Type: "object",
		Properties: map[string]SchemaProperty{
			"title":        {Type: "string", Description: "SEO title, under 60 characters"},
			"excerpt":      {Type: "string", Description: "Meta description, under 160 characters"},
			"tags":         {Type: "array", Items: &str, Description: "3-5 topical tags"},
			"keywords":     {Type: "array", Items: &str, Description: "5-8 SEO keywords"},
			"imagePrompts": {Type: "array", Items: &str, Description: "2 descriptive image prompts"},
		},
		Required: []string{"title", "excerpt", "tags", "keywords", "imagePrompts"},
	}
}
