package schemas_test

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/pagemapper/api/schemas"
)

func TestRoles(t *testing.T) {
	t.Parallel()

	t.Run("AllRolesAreValid", func(t *testing.T) {
		require.Len(t, schemas.AllRoles, 14)
		for _, r := range schemas.AllRoles {
			assert.True(t, r.IsValid(), "role %s", r)
		}
		assert.False(t, schemas.Role("Slider").IsValid())
	})

	t.Run("OnlyImageIsInspectionOnly", func(t *testing.T) {
		for _, r := range schemas.AllRoles {
			assert.Equal(t, r != schemas.RoleImage, r.IsInteractive(), "role %s", r)
		}
	})
}

func TestStrategyOrder(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []schemas.Strategy{
		schemas.StrategyTestID,
		schemas.StrategyAriaLabel,
		schemas.StrategyID,
		schemas.StrategyName,
		schemas.StrategyStructural,
	}, schemas.StrategyOrder)
}

func TestScanResultFinalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		result   schemas.ScanResult
		expected schemas.Status
	}{
		{
			name:     "Empty",
			result:   schemas.ScanResult{},
			expected: schemas.StatusSuccess,
		},
		{
			name: "Warnings",
			result: schemas.ScanResult{
				Elements: []schemas.DetectedElement{{ID: "button"}},
				Warnings: []schemas.Warning{{Code: schemas.WarnElementVanished}},
			},
			expected: schemas.StatusSuccessWithWarnings,
		},
		{
			name: "FailureWins",
			result: schemas.ScanResult{
				Warnings: []schemas.Warning{{Code: schemas.WarnElementVanished}},
				Failures: []schemas.FailureReason{{Code: "LoginTimeout"}},
			},
			expected: schemas.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.result
			r.Methods = []schemas.MethodDescriptor{{Name: "clickButton"}, {Name: "hoverButton"}}
			r.Finalize()
			assert.Equal(t, tt.expected, r.Status)
			assert.Equal(t, len(r.Elements), r.Metadata.ElementCount)
			assert.Equal(t, 2, r.Metadata.MethodCount)
		})
	}
}

func TestDetectedElementJSONTags(t *testing.T) {
	t.Parallel()

	el := schemas.DetectedElement{
		ID:   "textinput_email_field",
		Role: schemas.RoleTextInput,
		Locator: schemas.Locator{
			Primary:  `[data-test-id="email-field"]`,
			Strategy: schemas.StrategyTestID,
		},
		Attributes:    map[string]string{"type": "email"},
		IsInteractive: true,
	}

	data, err := jsoniter.Marshal(el)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, jsoniter.Unmarshal(data, &raw))
	assert.Equal(t, "TextInput", raw["role"])
	assert.Equal(t, true, raw["is_interactive"])
	assert.NotContains(t, raw, "text_snapshot")

	locator, ok := raw["locator"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, `[data-test-id="email-field"]`, locator["primary"])
	assert.Equal(t, "test_id", locator["strategy"])

	assert.Equal(t, "email", el.Attr("type"))
	assert.Empty(t, schemas.DetectedElement{}.Attr("type"))
}
