// Package extraction holds the aggregate result of an extraction job: the
// Extraction row mutated incrementally while the job runs, and the
// Interaction rows produced by the model.
package extraction

import (
	"time"

	"github.com/google/uuid"
)

// Status mirrors the owning job's terminal status but lives longer, so
// results stay consumable after the job row stops being interesting
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusPartial    Status = "partial"
	StatusFailed     Status = "failed"
)

// Extraction is the aggregate result row for one job
type Extraction struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Status      Status    `json:"status"`
	DiseaseType string    `json:"disease_type"`
	FileCount   int       `json:"file_count"`
	// InteractionCount is a derived cache of the associated Interaction
	// rows, recomputed on every successful batch; never authoritative
	InteractionCount int               `json:"interaction_count"`
	References       map[string]string `json:"references,omitempty"` // filename -> bibliographic string
	Errors           []string          `json:"errors,omitempty"`     // append-only diagnostics
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// New creates an Extraction in processing state with zero counts
func New(ownerID string) *Extraction {
	now := time.Now()
	return &Extraction{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Title:      "Untitled extraction",
		Status:     StatusProcessing,
		References: make(map[string]string),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// EntityLevel classifies where in the biological hierarchy an entity sits
type EntityLevel string

const (
	LevelMolecular EntityLevel = "Molecular"
	LevelCellular  EntityLevel = "Cellular"
	LevelTissue    EntityLevel = "Tissue"
	LevelOrgan     EntityLevel = "Organ"
)

// Entity is one side of an interaction
type Entity struct {
	Name  string      `json:"name"`
	Level EntityLevel `json:"level"`
}

// InteractionType is the closed enum of relationship kinds
type InteractionType string

const (
	TypeUpregulation   InteractionType = "upregulation"
	TypeActivation     InteractionType = "activation"
	TypeInhibition     InteractionType = "inhibition"
	TypeDownregulation InteractionType = "downregulation"
	TypeBinding        InteractionType = "binding"
	TypeTransport      InteractionType = "transport"
)

// ValidInteractionType reports whether t is a member of the closed enum
func ValidInteractionType(t InteractionType) bool {
	switch t {
	case TypeUpregulation, TypeActivation, TypeInhibition,
		TypeDownregulation, TypeBinding, TypeTransport:
		return true
	default:
		return false
	}
}

// Confidence grades how certain the model was about an interaction
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Interaction is one extracted source→target relationship. Rows are
// created in bulk per validated batch and never mutated afterwards.
type Interaction struct {
	ID            string          `json:"id"`
	ExtractionID  string          `json:"extraction_id"`
	Mechanism     string          `json:"mechanism"`
	Source        Entity          `json:"source"`
	Target        Entity          `json:"target"`
	Type          InteractionType `json:"interaction_type"`
	Details       string          `json:"details,omitempty"`
	Confidence    Confidence      `json:"confidence"`
	SourceFile    string          `json:"source_file,omitempty"`
	PageRef       string          `json:"page_ref,omitempty"`
	ReferenceText string          `json:"reference_text,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Valid reports whether the interaction meets the minimal persistence
// requirements: non-empty mechanism, source name, and target name.
// Malformed records are dropped before persistence, never stored
// half-populated.
func (i *Interaction) Valid() bool {
	return i.Mechanism != "" && i.Source.Name != "" && i.Target.Name != ""
}
