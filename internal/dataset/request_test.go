package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUpdateRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantID   string
		wantYear string
	}{
		{"strings", `{"id":"A1","Inst_Year":"2020"}`, "A1", "2020"},
		{"numbers", `{"id":42,"Inst_Year":2020}`, "42", "2020"},
		{"decimal keeps literal", `{"id":42.0,"Inst_Year":"x"}`, "42.0", "x"},
		{"boolean", `{"id":"A1","Inst_Year":true}`, "A1", "true"},
		{"empty string is a value", `{"id":"","Inst_Year":""}`, "", ""},
		{"extra keys ignored", `{"id":"A1","Inst_Year":"1999","note":"x"}`, "A1", "1999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodeUpdateRequest([]byte(tt.body))
			require.NoError(t, err)
			require.NoError(t, req.Validate())
			assert.Equal(t, tt.wantID, req.ID.String())
			assert.Equal(t, tt.wantYear, req.InstYear.String())
		})
	}
}

func TestUpdateRequest_Validate_Missing(t *testing.T) {
	for _, body := range []string{
		`{}`,
		`{"id":"A1"}`,
		`{"Inst_Year":"2020"}`,
		`{"id":null,"Inst_Year":"2020"}`,
		`{"id":"A1","Inst_Year":null}`,
	} {
		req, err := DecodeUpdateRequest([]byte(body))
		require.NoError(t, err, body)

		err = req.Validate()
		require.Error(t, err, body)
		assert.True(t, IsInvalid(err), body)
		assert.ErrorIs(t, err, ErrMissingFields)
		assert.Contains(t, err.Error(), MsgMissingFields)
	}
}

func TestDecodeUpdateRequest_Malformed(t *testing.T) {
	for _, body := range []string{
		``,
		`   `,
		`not json`,
		`{"id":{"nested":1},"Inst_Year":"2020"}`,
		`{"id":["A1"],"Inst_Year":"2020"}`,
	} {
		_, err := DecodeUpdateRequest([]byte(body))
		require.Error(t, err, body)
		assert.True(t, IsInvalid(err), body)
	}
}

func TestValue_MarshalJSON(t *testing.T) {
	data, err := Value("A1").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"A1"`, string(data))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInvalid, KindOf(invalid(ErrMissingFields)))
	assert.Equal(t, KindNotFound, KindOf(notFound(ErrFeatureNotFound)))
	assert.Equal(t, KindStorage, KindOf(storage(assert.AnError, "dataset: read")))
	assert.Equal(t, KindStorage, KindOf(assert.AnError))
	assert.False(t, IsInvalid(nil))
	assert.False(t, IsNotFound(nil))
	assert.Equal(t, "not_found", KindNotFound.String())
}
