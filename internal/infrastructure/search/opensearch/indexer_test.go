package opensearch

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBulkEntry_ActionAndDocumentLines(t *testing.T) {
	var body bytes.Buffer
	doc := alertDocument{
		BatchID:        "2026-08-W3",
		CompanyID:      "hooli",
		Statement:      "Hooli is evaluating a competitor for renewal.",
		WordCount:      7,
		Classification: "REVENUE_THREAT",
	}
	require.NoError(t, writeBulkEntry(&body, "sweave-alerts", "a1", doc))

	lines := strings.Split(strings.TrimRight(body.String(), "\n"), "\n")
	require.Len(t, lines, 2)

	var action map[string]map[string]string
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &action))
	assert.Equal(t, "sweave-alerts", action["index"]["_index"])
	assert.Equal(t, "a1", action["index"]["_id"])

	var got alertDocument
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &got))
	assert.Equal(t, doc.Statement, got.Statement)
	assert.Equal(t, doc.Classification, got.Classification)
}

func TestWriteBulkEntry_MultipleDocumentsInterleave(t *testing.T) {
	var body bytes.Buffer
	require.NoError(t, writeBulkEntry(&body, "sweave-themes", "t1", themeDocument{Statement: "one"}))
	require.NoError(t, writeBulkEntry(&body, "sweave-themes", "t2", themeDocument{Statement: "two"}))

	lines := strings.Split(strings.TrimRight(body.String(), "\n"), "\n")
	assert.Len(t, lines, 4, "each document contributes an action line and a source line")
}
