package metadata

import (
	"strings"
)

// GEOSample ist die rohe Metadaten-Form einer GEO-Probe: jeder Schlüssel
// trägt eine Liste von Zeilenwerten, characteristics-Zeilen enthalten
// Freitext der Form "key: value".
type GEOSample struct {
	Metadata map[string][]string
}

// PreprocessGEOSample macht aus einer GEO-Probe einen flachen RawSample.
// "characteristics"-Zeilen werden in eigene Schlüssel aufgespalten
// ("characteristics: sex" -> "female"), alle übrigen Listen werden zu
// Skalaren zusammengefasst. Das Ergebnis enthält garantiert keine
// verschachtelten Werte mehr.
func PreprocessGEOSample(sample GEOSample) RawSample {
	flat := make(RawSample, len(sample.Metadata))

	for key, values := range sample.Metadata {
		if isCharacteristicsKey(key) {
			for _, line := range values {
				name, value, ok := splitCharacteristic(line)
				if !ok {
					continue
				}
				flat["characteristics: "+name] = value
			}
			continue
		}

		joined := strings.TrimSpace(strings.Join(values, ", "))
		if joined == "" {
			continue
		}
		flat[key] = joined
	}
	return flat
}

// isCharacteristicsKey erkennt characteristics-Zeilen inklusive der
// Kanal-Suffixe ("characteristics_ch1", "characteristics_ch2").
func isCharacteristicsKey(key string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(key)), "characteristics")
}

// splitCharacteristic zerlegt eine "key: value"-Zeile am ersten
// Doppelpunkt. Zeilen ohne Doppelpunkt oder ohne Wert fallen weg.
func splitCharacteristic(line string) (string, string, bool) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" || value == "" {
		return "", "", false
	}
	return name, value, true
}
