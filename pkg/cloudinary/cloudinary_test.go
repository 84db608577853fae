package cloudinary

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublicIDKeepsExtensionAndStripsUnsafeRunes(t *testing.T) {
	require.Equal(t, "test-12-hidden-cases.zip", PublicID("test-12-hidden cases.ZIP"))
	require.Equal(t, "cases.zip", PublicID("../../cases.zip"))
	require.Equal(t, "archive", PublicID("   "))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
	require.False(t, Config{CloudName: "demo", APIKey: "key"}.Configured())
	require.True(t, Config{CloudName: "demo", APIKey: "key", APISecret: "secret"}.Configured())
}
