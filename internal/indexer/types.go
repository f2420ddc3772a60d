package indexer

// Chunk is one slice of a document produced by the chunker.
type Chunk struct {
	Position int
	Article  string
	Pages    string
	Text     string
}
