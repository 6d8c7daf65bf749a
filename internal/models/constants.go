package models

const (
	MetaSource     = "source"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaTitle      = "title"
	MetaChunkIndex = "chunk_index"

	// ContextSeparator joins retrieved chunks into the prompt's context block.
	ContextSeparator = "\n\n"

	// IDontKnow is the reply the answer prompt asks for when the context
	// does not contain the answer.
	IDontKnow = "I don't know"
)

// SupportedExtensions lists the ingestible file extensions, sorted.
var SupportedExtensions = []string{".md", ".pdf", ".txt"}

var (
	AnswerPromptTemplate = `Use the provided context to answer the question.
If the answer is not in the context, say "` + IDontKnow + `".

Context:
{{.context}}

Question: {{.question}}`
)
