package op_service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatVersion(t *testing.T) {
	require.Equal(t, "v1.0.0", FormatVersion("v1.0.0", "", "", ""))
	require.Equal(t, "v1.0.0-abcdef01-1700000000-dev", FormatVersion("v1.0.0", "abcdef0123456789", "1700000000", "dev"))
	require.Equal(t, "v1.0.0-abc", FormatVersion("v1.0.0", "abc", "", ""))
}
