package enum

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentStatus_IsTerminal(t *testing.T) {
	assert.False(t, DocumentStatusDraft.IsTerminal())
	assert.False(t, DocumentStatusSubmitted.IsTerminal())
	assert.True(t, DocumentStatusAccepted.IsTerminal())
	// Rejected is not terminal: the operator can still correct and resubmit
	assert.False(t, DocumentStatusRejected.IsTerminal())
	assert.True(t, DocumentStatusFailedPermanently.IsTerminal())
}

func TestDocumentStatus_JSONUsesNames(t *testing.T) {
	data, err := json.Marshal(DocumentStatusSubmitted)
	require.NoError(t, err)
	assert.Equal(t, `"Submitted"`, string(data))

	var s DocumentStatus
	require.NoError(t, json.Unmarshal([]byte(`"Rejected"`), &s))
	assert.Equal(t, DocumentStatusRejected, s)
}

func TestParseDocumentStatus(t *testing.T) {
	s, err := ParseDocumentStatus("Accepted")
	require.NoError(t, err)
	assert.Equal(t, DocumentStatusAccepted, s)

	_, err = ParseDocumentStatus("nonsense")
	assert.Error(t, err)
}
