package qdrant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		raw    string
		host   string
		port   int
		useTLS bool
	}{
		{"", "localhost", DefaultPort, false},
		{"qdrant", "qdrant", DefaultPort, false},
		{"qdrant:7000", "qdrant", 7000, false},
		{"http://localhost:6334", "localhost", 6334, false},
		{"https://cloud.example.com:6334", "cloud.example.com", 6334, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, port, useTLS, err := parseAddress(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.useTLS, useTLS)
		})
	}
}

func TestParseAddress_BadPort(t *testing.T) {
	_, _, _, err := parseAddress("qdrant:abc")
	assert.Error(t, err)
}

func TestPointID(t *testing.T) {
	id := uuid.NewString()
	assert.Equal(t, id, PointID(id))

	derived := PointID("doc-1#0")
	_, err := uuid.Parse(derived)
	require.NoError(t, err)
	assert.Equal(t, derived, PointID("doc-1#0"))
	assert.NotEqual(t, derived, PointID("doc-1#1"))
}

func TestDocumentFilter(t *testing.T) {
	assert.Nil(t, documentFilter(driven.VectorFilter{}))

	f := documentFilter(driven.VectorFilter{DocumentIDs: []string{"a", "b"}})
	require.NotNil(t, f)
	require.Len(t, f.Must, 1)
	field := f.Must[0].GetField()
	require.NotNil(t, field)
	assert.Equal(t, keyDocumentID, field.GetKey())
	assert.Equal(t, []string{"a", "b"}, field.GetMatch().GetKeywords().GetStrings())
}

func TestStore_ResetWithoutCollection(t *testing.T) {
	s := &Store{collection: "docs"}
	require.NoError(t, s.Reset(context.Background()))
	assert.False(t, s.hasCollection())
}
