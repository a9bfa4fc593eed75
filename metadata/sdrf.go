package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// ParseSDRF liest eine tabulator-separierte SDRF-Datei und liefert pro
// Datenzeile einen flachen RawSample mit den Spaltenüberschriften als
// Schlüssel.
func ParseSDRF(r io.Reader) ([]RawSample, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sdrf header: %w", err)
	}

	var samples []RawSample
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sdrf row: %w", err)
		}

		sample := make(RawSample, len(header))
		for i, column := range header {
			if i >= len(row) {
				break
			}
			value := strings.TrimSpace(row[i])
			if column == "" || value == "" {
				continue
			}
			sample[column] = value
		}
		if len(sample) > 0 {
			samples = append(samples, sample)
		}
	}
	return samples, nil
}

// FetchSDRF lädt eine SDRF-Datei per HTTP und parst sie.
func FetchSDRF(url string) ([]RawSample, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sdrf download failed: status %d", resp.StatusCode)
	}
	return ParseSDRF(resp.Body)
}
