package metadata

import (
	"fmt"
	"strings"
)

// RawSample ist ein flacher Roh-Datensatz einer Probe: quellenspezifischer
// Feldname auf Skalar (string oder float64). Verschachtelte Maps dürfen
// in der endgültigen, geflatteten Form nicht mehr vorkommen; das stellt
// Flatten sicher und der Harmonizer setzt es voraus.
type RawSample map[string]any

// Flatten macht aus einem beliebig verschachtelten Datensatz einen
// flachen RawSample. Verschachtelte Maps werden zu dotted keys
// ("extract.name"), Listen von Skalaren zu komma-separierten Strings;
// alles andere wird verworfen.
func Flatten(raw map[string]any) RawSample {
	flat := make(RawSample, len(raw))
	flattenInto(flat, "", raw)
	return flat
}

func flattenInto(flat RawSample, prefix string, raw map[string]any) {
	for key, value := range raw {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}

		switch v := value.(type) {
		case map[string]any:
			flattenInto(flat, name, v)
		case []any:
			if joined, ok := joinScalars(v); ok {
				flat[name] = joined
			}
		case string:
			flat[name] = v
		case float64:
			flat[name] = v
		case int:
			flat[name] = float64(v)
		case int64:
			flat[name] = float64(v)
		case bool:
			flat[name] = fmt.Sprintf("%t", v)
		case nil:
			// leere Werte fallen weg
		}
	}
}

// joinScalars verbindet eine Liste skalarer Werte zu einem String.
// Enthält die Liste nicht-skalare Elemente, wird sie komplett verworfen.
func joinScalars(values []any) (string, bool) {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		switch v := value.(type) {
		case string:
			parts = append(parts, v)
		case float64:
			parts = append(parts, strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), "."))
		case int:
			parts = append(parts, fmt.Sprintf("%d", v))
		case bool:
			parts = append(parts, fmt.Sprintf("%t", v))
		default:
			return "", false
		}
	}
	return strings.Join(parts, ", "), true
}
