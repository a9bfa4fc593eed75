package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCollectsAllViolations(t *testing.T) {
	flags := &gatherFlags{
		Sources: []string{"microarray-ae", "bogus"},
		Since:   "01-01-2025",
		Until:   "2025/06/30",
	}

	violations := validate(flags)

	// Datumsformat (2x), unbekannte Quelle, fehlendes Suchkriterium.
	assert.Len(t, violations, 4)
}

func TestValidateAcceptsCompleteFlags(t *testing.T) {
	flags := &gatherFlags{
		Sources:  []string{"microarray-ae", "microarray-geo", "rna-seq"},
		Organism: "homo sapiens",
		Since:    "2025-01-01",
		Until:    "2025-06-30",
	}
	assert.Empty(t, validate(flags))
}

func TestValidateRejectsInvertedDateWindow(t *testing.T) {
	flags := &gatherFlags{
		Sources:  []string{"rna-seq"},
		Organism: "homo sapiens",
		Since:    "2025-06-30",
		Until:    "2025-01-01",
	}

	violations := validate(flags)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "must not be after")
}

func TestValidateRequiresExactlyOneCriterionPerSource(t *testing.T) {
	flags := &gatherFlags{
		Sources:  []string{"rna-seq"},
		Organism: "homo sapiens",
		Keyword:  "islets",
		Since:    "2025-01-01",
	}

	violations := validate(flags)
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "exactly one")
}

func TestValidateAcceptsIDsAsOnlyCriterion(t *testing.T) {
	flags := &gatherFlags{
		Sources: []string{"microarray-geo"},
		GPLIDs:  []string{"GPL570"},
		Since:   "2025-01-01",
	}
	assert.Empty(t, validate(flags))
}

func TestMergeIDsReadsFileLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(path, []byte("GPL570\n\n  GPL96  \n"), 0o644))

	merged, err := mergeIDs([]string{"GPL1261"}, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"GPL1261", "GPL570", "GPL96"}, merged)
}

func TestMergeIDsWithoutFile(t *testing.T) {
	merged, err := mergeIDs([]string{"GPL570"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"GPL570"}, merged)
}
