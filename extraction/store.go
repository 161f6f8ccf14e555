package extraction

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// Store handles persistence of extractions and their interactions
type Store struct {
	db *sql.DB
}

// NewStore creates a new extraction store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new extraction row
func (s *Store) Create(e *Extraction) error {
	refsJSON, err := marshalMap(e.References)
	if err != nil {
		return errors.Wrap(err, "marshal references")
	}
	errsJSON, err := marshalList(e.Errors)
	if err != nil {
		return errors.Wrap(err, "marshal errors")
	}

	query := `
		INSERT INTO extractions (
			id, owner_id, title, status, disease_type,
			file_count, interaction_count, reference_map, errors,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		e.ID, e.OwnerID, e.Title, e.Status, e.DiseaseType,
		e.FileCount, e.InteractionCount, refsJSON, errsJSON,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create extraction")
	}
	return nil
}

// Get retrieves an extraction by ID
func (s *Store) Get(id string) (*Extraction, error) {
	query := `
		SELECT id, owner_id, title, status, disease_type,
		       file_count, interaction_count, reference_map, errors,
		       created_at, updated_at
		FROM extractions WHERE id = ?
	`

	var e Extraction
	var refsJSON, errsJSON sql.NullString

	err := s.db.QueryRow(query, id).Scan(
		&e.ID, &e.OwnerID, &e.Title, &e.Status, &e.DiseaseType,
		&e.FileCount, &e.InteractionCount, &refsJSON, &errsJSON,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("extraction %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get extraction")
	}

	if refsJSON.Valid && refsJSON.String != "" {
		if err := json.Unmarshal([]byte(refsJSON.String), &e.References); err != nil {
			return nil, errors.Wrapf(err, "unmarshal references for extraction %s", id)
		}
	}
	if e.References == nil {
		e.References = make(map[string]string)
	}
	if errsJSON.Valid && errsJSON.String != "" {
		if err := json.Unmarshal([]byte(errsJSON.String), &e.Errors); err != nil {
			return nil, errors.Wrapf(err, "unmarshal errors for extraction %s", id)
		}
	}

	return &e, nil
}

// Update persists the mutable fields of an extraction
func (s *Store) Update(e *Extraction) error {
	refsJSON, err := marshalMap(e.References)
	if err != nil {
		return errors.Wrap(err, "marshal references")
	}
	errsJSON, err := marshalList(e.Errors)
	if err != nil {
		return errors.Wrap(err, "marshal errors")
	}

	e.UpdatedAt = time.Now()

	query := `
		UPDATE extractions
		SET title = ?,
		    status = ?,
		    disease_type = ?,
		    file_count = ?,
		    interaction_count = ?,
		    reference_map = ?,
		    errors = ?,
		    updated_at = ?
		WHERE id = ?
	`

	_, err = s.db.Exec(query,
		e.Title, e.Status, e.DiseaseType,
		e.FileCount, e.InteractionCount, refsJSON, errsJSON,
		e.UpdatedAt, e.ID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update extraction")
	}
	return nil
}

// BulkInsertInteractions persists a batch of validated interactions.
// Invalid interactions are skipped, not stored half-populated.
// Returns the number of rows inserted.
func (s *Store) BulkInsertInteractions(extractionID string, items []Interaction) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "begin interaction insert")
	}

	stmt, err := tx.Prepare(`
		INSERT INTO interactions (
			id, extraction_id, mechanism,
			source_name, source_level, target_name, target_level,
			interaction_type, details, confidence,
			source_file, page_ref, reference_text, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "prepare interaction insert")
	}
	defer stmt.Close()

	inserted := 0
	now := time.Now()
	for _, item := range items {
		if !item.Valid() {
			continue
		}
		id := item.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := stmt.Exec(
			id, extractionID, item.Mechanism,
			item.Source.Name, item.Source.Level, item.Target.Name, item.Target.Level,
			item.Type, item.Details, item.Confidence,
			item.SourceFile, item.PageRef, item.ReferenceText, now,
		)
		if err != nil {
			tx.Rollback()
			return 0, errors.Wrapf(err, "insert interaction %s", id)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit interaction insert")
	}
	return inserted, nil
}

// CountInteractions returns the number of interaction rows for an extraction
func (s *Store) CountInteractions(extractionID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM interactions WHERE extraction_id = ?`, extractionID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "count interactions")
	}
	return count, nil
}

// ListInteractions returns all interactions for an extraction in insertion order
func (s *Store) ListInteractions(extractionID string) ([]Interaction, error) {
	query := `
		SELECT id, extraction_id, mechanism,
		       source_name, source_level, target_name, target_level,
		       interaction_type, details, confidence,
		       source_file, page_ref, reference_text, created_at
		FROM interactions
		WHERE extraction_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.Query(query, extractionID)
	if err != nil {
		return nil, errors.Wrap(err, "list interactions")
	}
	defer rows.Close()

	var items []Interaction
	for rows.Next() {
		var item Interaction
		var details, sourceFile, pageRef, refText sql.NullString
		err := rows.Scan(
			&item.ID, &item.ExtractionID, &item.Mechanism,
			&item.Source.Name, &item.Source.Level, &item.Target.Name, &item.Target.Level,
			&item.Type, &details, &item.Confidence,
			&sourceFile, &pageRef, &refText, &item.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan interaction")
		}
		item.Details = details.String
		item.SourceFile = sourceFile.String
		item.PageRef = pageRef.String
		item.ReferenceText = refText.String
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate interactions")
	}
	return items, nil
}

// RefreshInteractionCount recomputes the cached interaction_count from the
// actual interaction rows and persists it
func (s *Store) RefreshInteractionCount(extractionID string) (int, error) {
	count, err := s.CountInteractions(extractionID)
	if err != nil {
		return 0, err
	}

	_, err = s.db.Exec(
		`UPDATE extractions SET interaction_count = ?, updated_at = ? WHERE id = ?`,
		count, time.Now(), extractionID,
	)
	if err != nil {
		return 0, errors.Wrap(err, "refresh interaction count")
	}
	return count, nil
}

// Delete removes an extraction; interaction rows cascade
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM extractions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete extraction")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("extraction %s", id)
	}
	return nil
}

func marshalMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func marshalList(l []string) (string, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
