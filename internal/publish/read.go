package publish

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"quantscraper/internal/analysis"
)

// ReadTable loads a table previously published as JSON.
func ReadTable(fs afero.Fs, path string) (analysis.Table, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != FormatJSON.Ext() {
		return nil, fmt.Errorf("read table %s: only json artifacts can be read back", path)
	}
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	var records []analysis.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", path, err)
	}
	return analysis.NewTable(records), nil
}
