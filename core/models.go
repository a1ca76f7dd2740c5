package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so that identical
// content always maps to the same document or quality.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Hex returns the ID as a fixed-width hex string, the form used
// for docId values inside pipeline messages.
func (id ID) Hex() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Message is the envelope carried on the bus between pipeline stages.
// Every stage transition uses this exact shape.
type Message struct {
	SubjectID string `json:"subjectId"`
	DocID     string `json:"docId"`
}

// Field paths into a job document. The store is path-addressed; each
// stage reads exactly one of these and overwrites exactly one other.
// The casing follows the stored document schema, not Go convention.
const (
	PathGeneralData      = "generalData"
	PathProcessingStatus = "generalData.processingStatus"
	PathRawText          = "texts.rawText"
	PathExtractedText    = "texts.extractedText"
	PathRequirements     = "requirements"
	PathSoftSkills       = "SkillAssessment.Softskills"
	PathDomainExpertise  = "SkillAssessment.DomainExpertise"
	PathScore            = "Score"
	PathQualities        = "qualities"
)

// GeneralData is the bookkeeping subtree of a job document.
type GeneralData struct {
	Status           string    `json:"status"`
	ProcessingStatus string    `json:"processingStatus"`
	URL              string    `json:"url,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// SoftSkill is one entry of the SkillAssessment.Softskills map.
type SoftSkill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Assessment  string `json:"assessment,omitempty"`
	Score       int    `json:"score,omitempty"`
}

// DomainExpertise is the single SkillAssessment.DomainExpertise record.
type DomainExpertise struct {
	Name       string `json:"name"`
	Assessment string `json:"assessment"`
	Importance int    `json:"importance"` // 1-5
	Score      int    `json:"score,omitempty"`
}

// RequirementMatch scores one job requirement against the candidate material.
type RequirementMatch struct {
	Requirement string `json:"requirement"`
	Score       int    `json:"score"` // 0-100
	Assessment  string `json:"assessment"`
}

// ScoreResult is the Score subtree written by the scoring stage.
type ScoreResult struct {
	TotalScore int                `json:"totalScore"` // 0-100
	Summary    string             `json:"summary"`
	Matches    []RequirementMatch `json:"matches"`
}

// Quality is one entry of the qualities map. ResumeText holds the
// verbatim excerpt evidencing the quality; it is empty until the
// quality matcher has run, and stays empty when no unused excerpt
// could be attributed.
type Quality struct {
	Name       string `json:"name"`
	ResumeText string `json:"resumeText"`
	Location   string `json:"location,omitempty"`
}

// JobStatus is the lifecycle state of a queue entry.
type JobStatus int

const (
	// JobStatusPending marks an entry waiting for a free slot.
	JobStatusPending JobStatus = iota + 1
	// JobStatusProcessing marks an entry claimed by processQueue.
	JobStatusProcessing
	// JobStatusError marks an entry whose submission failed non-recoverably.
	// Only entries in this state may be re-enqueued.
	JobStatusError
)

// String returns the lowercase status name as stored in documents.
func (s JobStatus) String() string {
	switch s {
	case JobStatusPending:
		return "pending"
	case JobStatusProcessing:
		return "processing"
	case JobStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// QueueEntry is one queued external scraping request.
type QueueEntry struct {
	JobID      string
	Status     JobStatus
	RetryCount int
	CreatedAt  time.Time
	// UpdatedAt records the last status transition. Entries stuck in
	// processing are detected by its age.
	UpdatedAt time.Time
}

// ActiveJob records one in-flight external request. The active-job set
// and the concurrency counter are only ever mutated together inside a
// single transaction.
type ActiveJob struct {
	JobID     string
	JobType   string
	StartedAt time.Time
}
