package models

// ChatRequest is the body of /chat and /chat_plain.
type ChatRequest struct {
	Question string `json:"question"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

type IngestResponse struct {
	Status        string `json:"status"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type CollectionResponse struct {
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
}

// ErrorResponse mirrors the detail body clients already parse, plus the
// failure kind.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Kind   string `json:"kind,omitempty"`
}
