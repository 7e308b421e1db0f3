package actors

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// LoadActorsCSV reads actors from a CSV file with a header row. Recognized
// columns: id, name, kind, portrait, token, wildcard. Unknown columns are
// ignored; rows without an id are skipped.
func LoadActorsCSV(path string) ([]Actor, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	r := csv.NewReader(fp)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("csv %s has no header", path)
	}
	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := cols["id"]; !ok {
		return nil, fmt.Errorf("csv %s has no id column", path)
	}

	get := func(row []string, name string) string {
		if idx, ok := cols[name]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	out := []Actor{}
	for _, row := range rows[1:] {
		a := Actor{
			ID:          get(row, "id"),
			Name:        get(row, "name"),
			Kind:        get(row, "kind"),
			PortraitURL: get(row, "portrait"),
			Token: Token{
				ImageURL: get(row, "token"),
			},
		}
		if a.ID == "" {
			continue
		}
		if a.Kind == "" {
			a.Kind = "npc"
		}
		switch strings.ToLower(get(row, "wildcard")) {
		case "true", "1", "yes":
			a.Token.IsWildcard = true
		}
		out = append(out, a)
	}
	return out, nil
}
