package summarize

import "strings"

const bulletsPartialPrompt = `You are a legal document summarizer.
Summarize the following text into exactly 3-4 clear bullet points.
Do not include the original text in your output.
Keep it concise and preserve all key meanings.`

const bulletsCombinePrompt = `Combine the following partial summaries into a single, clean set of 3-4 bullet points,
removing duplicates and keeping it short and clear:`

const plainPartialPrompt = `You are a helpful legal document translator. Your job is to explain legal documents in simple, everyday English that anyone can understand.

Read this legal text and explain the MOST IMPORTANT points in simple terms. Focus on:
- What this document is about
- Who it involves
- What they're agreeing to do
- Any important dates or deadlines
- Any money or consequences involved

Write your answer in 3-4 simple bullet points using everyday language. Avoid legal jargon.`

const plainCombinePrompt = `Take these partial summaries and create ONE clear, simple summary in everyday English.

Focus on the MOST IMPORTANT information that someone needs to know. Use simple language and avoid legal terms.

Combine everything into 3-4 clear bullet points that explain:
- What this document is about
- Who it involves
- What they're agreeing to
- Any important details (dates, money, consequences)`

// PartialPrompt embeds one chunk verbatim after the "Text:" marker.
func PartialPrompt(style Style, chunk string) string {
	instructions, cue := bulletsPartialPrompt, "Summary:"
	if style == StylePlain {
		instructions, cue = plainPartialPrompt, "Simple Summary:"
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\nText:\n")
	sb.WriteString(chunk)
	sb.WriteString("\n\n")
	sb.WriteString(cue)
	return sb.String()
}

// CombinePrompt embeds the space-joined partial summaries.
func CombinePrompt(style Style, partials string) string {
	instructions, cue := bulletsCombinePrompt, "Final Summary:"
	if style == StylePlain {
		instructions, cue = plainCombinePrompt, "Final Simple Summary:"
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(partials)
	sb.WriteString("\n\n")
	sb.WriteString(cue)
	return sb.String()
}
