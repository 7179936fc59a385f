package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsage/propsage"
)

func TestValidateFilterRequest(t *testing.T) {
	v := NewRequestValidator()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{
			name: "valid",
			body: `{"data_upload_id": "0b906cb3-6eae-4ae8-9e1f-53e35e1fefc4", "filter_criteria": {"price": {"min": 100}}}`,
		},
		{
			name:    "missing criteria",
			body:    `{"data_upload_id": "0b906cb3-6eae-4ae8-9e1f-53e35e1fefc4"}`,
			wantErr: true,
		},
		{
			name:    "empty criteria object",
			body:    `{"data_upload_id": "0b906cb3-6eae-4ae8-9e1f-53e35e1fefc4", "filter_criteria": {}}`,
			wantErr: true,
		},
		{
			name:    "unknown field",
			body:    `{"data_upload_id": "0b906cb3-6eae-4ae8-9e1f-53e35e1fefc4", "filter_criteria": {"a": 1}, "extra": true}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `{{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateFilterRequest([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, propsage.IsErrorType(err, propsage.ErrorTypeValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateChartRequest(t *testing.T) {
	v := NewRequestValidator()

	valid := `{"data_upload_id": "0b906cb3-6eae-4ae8-9e1f-53e35e1fefc4",
		"chart_type": "bar", "x_column": "city", "y_column": "price"}`
	require.NoError(t, v.ValidateChartRequest([]byte(valid)))

	badType := `{"data_upload_id": "0b906cb3-6eae-4ae8-9e1f-53e35e1fefc4",
		"chart_type": "donut", "x_column": "city", "y_column": "price"}`
	err := v.ValidateChartRequest([]byte(badType))
	require.Error(t, err)
	assert.True(t, propsage.IsErrorType(err, propsage.ErrorTypeValidation))

	missingColumn := `{"data_upload_id": "0b906cb3-6eae-4ae8-9e1f-53e35e1fefc4",
		"chart_type": "bar", "x_column": "city"}`
	require.Error(t, v.ValidateChartRequest([]byte(missingColumn)))
}

func TestValidateChatRequest(t *testing.T) {
	v := NewRequestValidator()

	require.NoError(t, v.ValidateChatRequest(
		[]byte(`{"message": "hi", "session_id": "s1", "location": "Austin"}`)))

	require.Error(t, v.ValidateChatRequest([]byte(`{"session_id": "s1"}`)))
	require.Error(t, v.ValidateChatRequest([]byte(`{"message": "", "session_id": "s1"}`)))
}

func TestValidateAnalyzeRequest(t *testing.T) {
	v := NewRequestValidator()

	require.NoError(t, v.ValidateAnalyzeRequest(
		[]byte(`{"message": "good buy?", "session_id": "s1", "location": "Austin"}`)))

	// Analysis is location-scoped; location is mandatory and non-empty.
	err := v.ValidateAnalyzeRequest([]byte(`{"message": "good buy?", "session_id": "s1"}`))
	require.Error(t, err)
	assert.True(t, propsage.IsErrorType(err, propsage.ErrorTypeValidation))
	require.Error(t, v.ValidateAnalyzeRequest(
		[]byte(`{"message": "good buy?", "session_id": "s1", "location": ""}`)))
}

func TestValidateCompareRequest(t *testing.T) {
	v := NewRequestValidator()

	require.NoError(t, v.ValidateCompareRequest(
		[]byte(`{"locations": ["Austin", "Denver"]}`)))

	// Comparison needs at least two markets.
	require.Error(t, v.ValidateCompareRequest([]byte(`{"locations": ["Austin"]}`)))
	require.Error(t, v.ValidateCompareRequest([]byte(`{"locations": []}`)))
	require.Error(t, v.ValidateCompareRequest([]byte(`{}`)))
}

func TestValidatorCachesResolvedSchemas(t *testing.T) {
	v := NewRequestValidator()
	body := []byte(`{"message": "hi", "session_id": "s1"}`)

	require.NoError(t, v.ValidateChatRequest(body))
	require.NoError(t, v.ValidateChatRequest(body))
	assert.Len(t, v.resolved, 1)
}
