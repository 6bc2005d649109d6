package i18n

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestT(t *testing.T) {
	require.NoError(t, Init("en"))

	ctx := context.Background()
	assert.Equal(t, "Clocked In", T(ctx, "status.clocked_in"))
	assert.Equal(t, "បានចុះឈ្មោះចូល", T(WithLocale(ctx, "km"), "status.clocked_in"))
	assert.Equal(t, "Failed to record Clocked Out. Please try again.",
		T(ctx, "error.clock_event", map[string]any{"Status": "Clocked Out"}))
}

func TestT_UnknownIDFallsBackToID(t *testing.T) {
	require.NoError(t, Init("en"))
	assert.Equal(t, "no.such.key", T(context.Background(), "no.such.key"))
}

func TestMatch(t *testing.T) {
	require.NoError(t, Init("en"))

	tests := []struct {
		accept string
		want   string
	}{
		{"km", "km"},
		{"km-KH", "km"},
		{"en-US,en;q=0.9", "en"},
		{"fr-FR", "en"},
		{"", "en"},
		{"km;q=0.4, en;q=0.8", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.accept))
		})
	}
}

func TestLocaleFromContext_Default(t *testing.T) {
	require.NoError(t, Init("km"))
	defer Init("en")

	assert.Equal(t, "km", LocaleFromContext(context.Background()))
	assert.Equal(t, "en", LocaleFromContext(WithLocale(context.Background(), "en")))
}
