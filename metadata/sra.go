package metadata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"sample-scout/config"
)

// Sequencing-Plattformen, deren Daten die nachgelagerte Pipeline
// verarbeiten kann.
var supportedPlatforms = map[string]bool{
	"ILLUMINA":    true,
	"ION_TORRENT": true,
}

// UnsupportedDataTypeError meldet, dass ein Run auf einer Plattform
// erzeugt wurde, die nicht verarbeitet werden kann. Aufrufer überspringen
// die Accession und setzen den Lauf fort.
type UnsupportedDataTypeError struct {
	AccessionCode string
	Platform      string
}

func (e *UnsupportedDataTypeError) Error() string {
	return fmt.Sprintf("unsupported platform %q for run %s", e.Platform, e.AccessionCode)
}

// SRAFetcher holt die Roh-Metadaten eines einzelnen Runs über den
// ENA-Filereport und flacht sie zu einem RawSample ab.
type SRAFetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewSRAFetcher erstellt einen neuen SRA-Metadaten-Fetcher.
func NewSRAFetcher(cfg *config.Config, logger *zap.Logger) *SRAFetcher {
	return &SRAFetcher{Config: cfg, Logger: logger}
}

// GatherAllMetadata sammelt alle Run-Attribute für eine Run-Accession.
// Runs auf nicht unterstützten Plattformen liefern einen
// UnsupportedDataTypeError.
func (f *SRAFetcher) GatherAllMetadata(runAccession string) (RawSample, error) {
	log := f.Logger.With(zap.String("run", runAccession))

	reportURL := f.buildFileReportURL(runAccession)
	log.Debug("Rufe ENA-Filereport auf", zap.String("url", reportURL))

	resp, err := httpClient.Get(reportURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ena filereport failed: status %d", resp.StatusCode)
	}

	var records []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no filereport record for run %s", runAccession)
	}

	flat := Flatten(records[0])

	platform := stringValue(flat["instrument_platform"])
	if !supportedPlatforms[strings.ToUpper(platform)] {
		return nil, &UnsupportedDataTypeError{AccessionCode: runAccession, Platform: platform}
	}

	log.Debug("Run-Metadaten gesammelt", zap.Int("fields", len(flat)))
	return flat, nil
}

// buildFileReportURL baut die Filereport-URL für eine Run-Accession.
func (f *SRAFetcher) buildFileReportURL(runAccession string) string {
	params := url.Values{}
	params.Set("accession", runAccession)
	params.Set("result", "read_run")
	params.Set("fields", "all")
	params.Set("format", "json")
	return fmt.Sprintf("%s/filereport?%s", f.Config.ENAPortalBaseURL, params.Encode())
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
