package dataset

import (
	"bytes"
	"errors"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Value is a JSON scalar (string, number or boolean) held in its canonical
// text form. Numbers keep their literal digits.
type Value string

// UnmarshalJSON accepts any JSON scalar. Objects and arrays are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return eris.New("dataset: empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "dataset: decode string value")
		}
		*v = Value(s)
	case 't', 'f':
		b, err := strconv.ParseBool(string(data))
		if err != nil {
			return eris.Wrap(err, "dataset: decode boolean value")
		}
		*v = Value(strconv.FormatBool(b))
	case '{', '[':
		return eris.Errorf("dataset: value must be a string, number or boolean, got %s", data)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return eris.Wrap(err, "dataset: decode numeric value")
		}
		*v = Value(n.String())
	}
	return nil
}

// MarshalJSON writes the value as a JSON string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(v))
}

// String returns the canonical text form.
func (v Value) String() string {
	return string(v)
}

// UpdateRequest sets the installation year on every feature whose identifier
// equals ID. A nil field means the key was absent or null.
type UpdateRequest struct {
	ID       *Value `json:"id" validate:"required"`
	InstYear *Value `json:"Inst_Year" validate:"required"`
}

// Validate rejects requests without an identifier or a new value.
func (r UpdateRequest) Validate() error {
	if err := validatorInstance().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return invalid(ErrMissingFields)
		}
		return invalid(eris.Wrap(err, "dataset: validate update"))
	}
	return nil
}

// DecodeUpdateRequest parses a JSON update body. Malformed bodies are
// invalid-request errors.
func DecodeUpdateRequest(body []byte) (UpdateRequest, error) {
	var req UpdateRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, invalid(eris.New("Request body must be JSON"))
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, invalid(eris.Wrap(err, "Invalid JSON body"))
	}
	return req, nil
}
