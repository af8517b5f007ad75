package prompts

import "fmt"

// RAGSystemPrompt defines the assistant role for answer generation.
const RAGSystemPrompt = `You are a market analysis assistant. You answer questions about markets, industries, and business opportunities using only the context provided. If the context does not contain the answer, say so plainly instead of guessing. Cite the relevant details from the context in your answer.`

// ragUserTemplate embeds the retrieved context and the question.
const ragUserTemplate = `Use the following context to answer the question.

Context:
%s

Question: %s

Answer:`

// BuildRAGPrompt fills the user prompt template with the retrieved
// context and the question.
func BuildRAGPrompt(context, question string) string {
	return fmt.Sprintf(ragUserTemplate, context, question)
}

// Fixed answers for pipeline short-circuits. These exact strings are
// part of the API contract; clients match on them.
const (
	// EmptyQuestionAnswer is returned for blank or whitespace-only questions.
	EmptyQuestionAnswer = "Please provide a question to answer."

	// NoContextAnswer is returned when retrieval finds nothing relevant.
	NoContextAnswer = "I don't have enough information in my knowledge base to answer this question."
)

// DegradedAnswerPrefix opens the fallback answer used when retrieval
// succeeded but generation is unavailable. The retrieved excerpts
// follow, numbered.
const DegradedAnswerPrefix = `I found relevant information but cannot generate a full answer right now. Here are the most relevant excerpts from the knowledge base:`
