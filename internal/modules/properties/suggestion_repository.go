package properties

import (
	"database/sql"
	"fmt"

	"github.com/oakline/brickfolio/internal/domain"
)

// SuggestionRepository stores the append-only suggestion history
type SuggestionRepository struct {
	db *sql.DB
}

// NewSuggestionRepository creates a suggestion repository
func NewSuggestionRepository(db *sql.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Append records a suggestion. Existing rows are never updated.
func (r *SuggestionRepository) Append(s *domain.Suggestion) error {
	_, err := r.db.Exec(`
		INSERT INTO suggestions (
			id, property_id, action, score, confidence,
			rationale_level1, rationale_level2, rationale_level3,
			summary, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.PropertyID, string(s.Action), s.Score, s.Confidence,
		s.RationaleLevel1, s.RationaleLevel2, s.RationaleLevel3,
		s.Summary, s.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to insert suggestion for property %d: %w", s.PropertyID, err)
	}
	return nil
}

// ListByProperty returns suggestion history, newest first, capped at
// limit (unlimited when limit <= 0)
func (r *SuggestionRepository) ListByProperty(propertyID int64, limit int) ([]domain.Suggestion, error) {
	query := `
		SELECT id, property_id, action, score, confidence,
		       rationale_level1, rationale_level2, rationale_level3,
		       summary, generated_at
		FROM suggestions WHERE property_id = ?
		ORDER BY generated_at DESC, id DESC`
	args := []interface{}{propertyID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions for property %d: %w", propertyID, err)
	}
	defer rows.Close()

	var out []domain.Suggestion
	for rows.Next() {
		var (
			s      domain.Suggestion
			action string
		)
		if err := rows.Scan(&s.ID, &s.PropertyID, &action, &s.Score, &s.Confidence,
			&s.RationaleLevel1, &s.RationaleLevel2, &s.RationaleLevel3,
			&s.Summary, &s.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion row: %w", err)
		}
		s.Action = domain.SuggestionAction(action)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Latest returns the newest suggestion for a property, or nil when the
// property has never been analyzed
func (r *SuggestionRepository) Latest(propertyID int64) (*domain.Suggestion, error) {
	list, err := r.ListByProperty(propertyID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}
