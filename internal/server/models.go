package server

// Request bodies for the JSON API. Response shapes reuse the store and rag
// types directly.

type createKnowledgeBaseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ingestURLRequest struct {
	URL string `json:"url"`
}

type queryRequest struct {
	Question string `json:"question"`
}
