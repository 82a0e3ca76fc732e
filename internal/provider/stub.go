package provider

import "context"

// stubDimensions is the vector size the stub pretends to embed with.
const stubDimensions = 384

// Stub is a development/testing provider with no external dependency.
type Stub struct{}

// NewStub creates a stub provider.
func NewStub() *Stub { return &Stub{} }

// Embed returns a zero vector of fixed length.
func (s *Stub) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, stubDimensions), nil
}

// EmbedBatch returns a zero vector per input text.
func (s *Stub) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i := range vecs {
		vecs[i] = make([]float32, stubDimensions)
	}
	return vecs, nil
}

// Generate returns a fixed message.
func (s *Stub) Generate(ctx context.Context, prompt string) (string, error) {
	return "This is a stub response. Configure a real LLM provider for actual answers.", nil
}

var _ Provider = (*Stub)(nil)
