package sra

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sample-scout/agents"
	"sample-scout/config"
)

func TestCollectParsesStudyResults(t *testing.T) {
	var receivedQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedQuery = r.URL.Query().Get("query")
		fmt.Fprint(w, `[
			{"secondary_study_accession": "SRP123456", "first_public": "2025-01-15"},
			{"secondary_study_accession": "", "first_public": ""}
		]`)
	}))
	defer server.Close()

	agent := NewAgent(
		&config.Config{ENAPortalBaseURL: server.URL},
		agents.Filter{Organism: "homo sapiens", Since: "2025-01-01"},
		zap.NewNop(),
	)

	entries, err := agent.Collect()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "SRP123456", entries[0].AccessionCode)
	assert.Equal(t, "rna-seq", entries[0].Source)
	assert.Equal(t, "homo sapiens", entries[0].Organism)
	require.NotNil(t, entries[0].PublishedDate)
	assert.Equal(t, "2025-01-15", entries[0].PublishedDate.Format("2006-01-02"))

	assert.Contains(t, receivedQuery, `library_source="TRANSCRIPTOMIC"`)
	assert.Contains(t, receivedQuery, `tax_name("homo sapiens")`)
	assert.Contains(t, receivedQuery, "first_public>=2025-01-01")
}

func TestCollectHandlesNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	agent := NewAgent(&config.Config{ENAPortalBaseURL: server.URL}, agents.Filter{}, zap.NewNop())

	entries, err := agent.Collect()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCollectReportsSourceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	agent := NewAgent(&config.Config{ENAPortalBaseURL: server.URL}, agents.Filter{}, zap.NewNop())

	_, err := agent.Collect()
	var unavailable *agents.SourceUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "rna-seq", unavailable.Source)
}

func TestBuildQueryVariants(t *testing.T) {
	base := &config.Config{}

	byTaxon := NewAgent(base, agents.Filter{IDs: []string{"9606", "10090"}}, zap.NewNop())
	assert.Contains(t, byTaxon.buildQuery(), "(tax_eq(9606) OR tax_eq(10090))")

	byKeyword := NewAgent(base, agents.Filter{Keyword: "islets"}, zap.NewNop())
	assert.Contains(t, byKeyword.buildQuery(), `study_title="*islets*"`)

	windowed := NewAgent(base, agents.Filter{Organism: "homo sapiens", Until: "2025-06-01"}, zap.NewNop())
	assert.Contains(t, windowed.buildQuery(), "first_public<=2025-06-01")
}
