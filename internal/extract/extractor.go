package extract

// Extractor defines a minimal interface for turning raw HTML into a Document.
// Implementations can swap selection or decoding tactics without changing callers.
type Extractor interface {
	// Extract converts raw HTML bytes into a Document.
	Extract(input []byte, contentType string) (Document, error)
}

// Converter renders the whole document, or the parts matched by Selector,
// with the plain-text converter.
type Converter struct {
	Selector string
	Encoding string
}

func (c Converter) Extract(input []byte, contentType string) (Document, error) {
	return FromHTML(input, Options{ContentType: contentType, Encoding: c.Encoding, Selector: c.Selector})
}
