package llm

import "fmt"

const (
	AnswerSystemPrompt    = "You are an AI financial assistant that answers questions based on reports."
	SummarizeSystemPrompt = "You are an AI assistant that summarizes financial reports."
)

// AnswerPrompt places the retrieved context ahead of the question.
func AnswerPrompt(question, context string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\nAnswer based on the above context:", context, question)
}

// SummarizePrompt asks for a summary of text.
func SummarizePrompt(text string) string {
	return "Summarize the following report:\n\n" + text
}
