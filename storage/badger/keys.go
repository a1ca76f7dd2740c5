package badger

import "fmt"

// Key prefixes for different data types
const (
	docPrefix        = "jobdoc"
	queueEntryPrefix = "quent"
	activeJobPrefix  = "quact"
	activeCountKey   = "qucnt"
)

// makeDocKey generates a key for one field path of a job document.
// Format: prefix:subjectID:docID:fieldPath
func makeDocKey(subjectID, docID, path string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s:%s", docPrefix, subjectID, docID, path))
}

// makeQueueEntryKey generates a key for a queue entry by job ID.
func makeQueueEntryKey(jobID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", queueEntryPrefix, jobID))
}

// makeActiveJobKey generates a key for an active-job record by job ID.
func makeActiveJobKey(jobID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", activeJobPrefix, jobID))
}

// makeActiveCountKey generates the key of the concurrency counter.
func makeActiveCountKey() []byte {
	return []byte(activeCountKey)
}
