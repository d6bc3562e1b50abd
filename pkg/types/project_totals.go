package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ProjectTotals stores per-project point totals as a jsonb column.
type ProjectTotals map[uuid.UUID]int64

// Value implements driver.Valuer.
func (p ProjectTotals) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	encoded, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal project totals: %w", err)
	}
	return encoded, nil
}

// Scan implements sql.Scanner.
func (p *ProjectTotals) Scan(value any) error {
	if value == nil {
		*p = ProjectTotals{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported project totals type %T", value)
	}

	if len(raw) == 0 {
		*p = ProjectTotals{}
		return nil
	}

	decoded := ProjectTotals{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("unmarshal project totals: %w", err)
	}
	*p = decoded
	return nil
}

// Add folds delta into the total for the given project.
func (p ProjectTotals) Add(projectID uuid.UUID, delta int64) {
	if p == nil {
		return
	}
	p[projectID] += delta
}

// Clone returns a deep copy so snapshot rebuilds never alias live maps.
func (p ProjectTotals) Clone() ProjectTotals {
	if p == nil {
		return ProjectTotals{}
	}
	out := make(ProjectTotals, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
