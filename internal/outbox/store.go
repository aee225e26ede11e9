package outbox

// Document is the unit of persistence: the whole pending+failed collection,
// re-serialized in full on every mutation. Unknown fields in stored bytes are
// ignored on decode so older daemons can read documents written by newer ones.
type Document struct {
	Version int         `json:"version"`
	Pending []Operation `json:"pending"`
	Failed  []Operation `json:"failed"`
}

// DocumentVersion is written into every persisted document.
const DocumentVersion = 1

// Store persists the operation document under a single fixed slot.
// Implementations must treat undecodable slot contents as an empty document
// and drop the corrupt bytes rather than returning an error.
type Store interface {
	Load() (Document, error)
	Save(doc Document) error
}
