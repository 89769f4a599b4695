package types_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotty/deb-audit/pkg/types"
)

func TestNewStatus(t *testing.T) {
	assert.Equal(t, types.StatusOpen, types.NewStatus("open"))
	assert.Equal(t, types.StatusResolved, types.NewStatus("resolved"))
	assert.Equal(t, types.StatusUndetermined, types.NewStatus("undetermined"))

	// Anything outside the vocabulary maps to unknown.
	assert.Equal(t, types.StatusUnknown, types.NewStatus("fixed"))
	assert.Equal(t, types.StatusUnknown, types.NewStatus(""))
}

func TestStatus_JSON(t *testing.T) {
	b, err := json.Marshal(types.StatusIgnored)
	require.NoError(t, err)
	assert.Equal(t, `"ignored"`, string(b))

	var s types.Status
	require.NoError(t, json.Unmarshal([]byte(`"resolved"`), &s))
	assert.Equal(t, types.StatusResolved, s)

	require.NoError(t, json.Unmarshal([]byte(`"no-such-status"`), &s))
	assert.Equal(t, types.StatusUnknown, s)
}
