package orchestrator

import (
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/yungbote/sagacore/internal/sagatypes"
)

// encodeJSON marshals m into a gorm jsonb column value; a nil/empty map
// encodes as nil rather than the literal string "null", so Provider reads
// see an absent column instead of a JSON null token.
func encodeJSON(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// setResult stores an aggregation result on step.Result.
func setResult(step *sagatypes.Step, result map[string]any) error {
	encoded, err := encodeJSON(result)
	if err != nil {
		return err
	}
	step.Result = encoded
	return nil
}
