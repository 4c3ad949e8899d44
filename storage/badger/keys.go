package badger

import "fmt"

// Key prefixes for different record types
const (
	taskRecordPrefix   = "tskrec"
	taskDocIndexPrefix = "tskdoc"
	documentPrefix     = "docrec"
)

// makeTaskKey generates a key for a task record by ID.
func makeTaskKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", taskRecordPrefix, id))
}

// makeTaskDocIndexKey generates the index key mapping a document to its
// current task. The value holds the task ID.
func makeTaskDocIndexKey(documentID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", taskDocIndexPrefix, documentID))
}

// makeDocumentKey generates a key for a document record by ID.
func makeDocumentKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPrefix, id))
}
