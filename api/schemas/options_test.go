// api/schemas/options_test.go
package schemas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/webready/api/schemas"
)

func TestScrollOptions_Validate(t *testing.T) {
	require.NoError(t, schemas.DefaultScrollOptions().Validate())
	require.NoError(t, schemas.ScrollOptions{Behavior: "smooth", Block: "start", Inline: "nearest"}.Validate())

	err := schemas.ScrollOptions{Behavior: "fast", Block: "center", Inline: "center"}.Validate()
	assert.ErrorContains(t, err, `invalid scroll behavior "fast"`)
	err = schemas.ScrollOptions{Behavior: "auto", Block: "middle", Inline: "center"}.Validate()
	assert.ErrorContains(t, err, `invalid scroll block alignment "middle"`)
}

func TestParseClearPolicy(t *testing.T) {
	for in, want := range map[string]schemas.ClearPolicy{
		"":       schemas.ClearNever,
		"never":  schemas.ClearNever,
		"always": schemas.ClearAlways,
		"once":   schemas.ClearOnce,
	} {
		got, err := schemas.ParseClearPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := schemas.ParseClearPolicy("sometimes")
	assert.Error(t, err)
	assert.Equal(t, "once", schemas.ClearOnce.String())
	assert.Equal(t, "ClearPolicy(9)", schemas.ClearPolicy(9).String())
}
