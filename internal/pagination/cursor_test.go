package pagination

import (
	"encoding/base64"
	"testing"

	"linkup/backend/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	token := Encode("conversation",
		Pair{Key: "last_created_at", Value: "2026-08-29T10:00:00Z"},
		Pair{Key: "last_message_created_at", Value: "2026-08-29T11:30:00Z"},
	)

	cursor, err := Decode(token)
	require.NoError(t, err)

	assert.Equal(t, "conversation", cursor.Entity)

	createdAt, ok := cursor.Get("last_created_at")
	require.True(t, ok)
	assert.Equal(t, "2026-08-29T10:00:00Z", createdAt)

	messageCreatedAt, ok := cursor.Get("last_message_created_at")
	require.True(t, ok)
	assert.Equal(t, "2026-08-29T11:30:00Z", messageCreatedAt)
}

func TestEncodeOmitsEmptyValues(t *testing.T) {
	token := Encode("conversation",
		Pair{Key: "last_created_at", Value: "2026-08-29T10:00:00Z"},
		Pair{Key: "last_message_created_at", Value: ""},
	)

	cursor, err := Decode(token)
	require.NoError(t, err)

	_, ok := cursor.Get("last_message_created_at")
	assert.False(t, ok, "empty pair must not survive the round trip")

	_, ok = cursor.Get("last_created_at")
	assert.True(t, ok)
}

func TestDecodeRejectsMalformedTokens(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"no entity separator", base64.StdEncoding.EncodeToString([]byte("justsomebytes"))},
		{"empty entity", base64.StdEncoding.EncodeToString([]byte(":k|v"))},
		{"empty payload", base64.StdEncoding.EncodeToString([]byte("conversation:"))},
		{"pair without value separator", base64.StdEncoding.EncodeToString([]byte("conversation:keyonly"))},
		{"pair with empty key", base64.StdEncoding.EncodeToString([]byte("conversation:|v"))},
		{"pair with empty value", base64.StdEncoding.EncodeToString([]byte("conversation:k|"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.token)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
			assert.Equal(t, "invalid_cursor", apperr.CodeOf(err))
		})
	}
}

func TestDecodeForRejectsForeignEntity(t *testing.T) {
	token := Encode("user", Pair{Key: "last_created_at", Value: "2026-08-29T10:00:00Z"})

	_, err := DecodeFor("conversation", token)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, "invalid_cursor", apperr.CodeOf(err))
	assert.Contains(t, err.Error(), "user")
}

func TestDecodeForAcceptsMatchingEntity(t *testing.T) {
	token := Encode("conversation", Pair{Key: "k", Value: "v"})

	cursor, err := DecodeFor("conversation", token)
	require.NoError(t, err)
	assert.Equal(t, "conversation", cursor.Entity)
}
