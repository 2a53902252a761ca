package kmessage

import (
	"fmt"
	"math"
	"strconv"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// MarshalJSON renders the message as {"time": t, "data": payload}.
// Non-finite numbers are rendered as strings since JSON has no literal for
// them.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time int64 `json:"time"`
		Data any   `json:"data"`
	}{Time: m.Time, Data: jsonPayload(m.Data)})
}

func jsonPayload(p Payload) any {
	switch d := p.(type) {
	case Number:
		return jsonNumber(float64(d))
	case Boolean:
		return bool(d)
	case Vector:
		out := make([]any, len(d))
		for i, x := range d {
			out[i] = jsonNumber(x)
		}
		return out
	case BooleanVector:
		return []bool(d)
	default:
		return nil
	}
}

func jsonNumber(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return v
}

// DecodeJSON parses the MarshalJSON form of a message whose payload must be
// of the given kind. A missing "time" member yields time 0 and hasTime false
// so callers can supply their own. Numbers may be given as the strings
// "NaN", "+Inf" and "-Inf".
func DecodeJSON(b []byte, kind Kind) (m Message, hasTime bool, err error) {
	var raw struct {
		Time *int64         `json:"time"`
		Data jsontext.Value `json:"data"`
	}
	if err := json.Unmarshal(b, &raw, json.RejectUnknownMembers(true)); err != nil {
		return Message{}, false, err
	}
	if len(raw.Data) == 0 {
		return Message{}, false, fmt.Errorf("missing data")
	}

	var data Payload
	switch kind {
	case KindNumber:
		var v jsonFloat
		err = json.Unmarshal(raw.Data, &v)
		data = Number(v)
	case KindBoolean:
		var v bool
		err = json.Unmarshal(raw.Data, &v)
		data = Boolean(v)
	case KindVector:
		var v []jsonFloat
		err = json.Unmarshal(raw.Data, &v)
		vec := make(Vector, len(v))
		for i, x := range v {
			vec[i] = float64(x)
		}
		data = vec
	case KindBooleanVector:
		var v []bool
		err = json.Unmarshal(raw.Data, &v)
		data = BooleanVector(v)
	default:
		return Message{}, false, fmt.Errorf("unknown payload kind %s", kind)
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("decode %s payload: %w", kind, err)
	}

	m.Data = data
	if raw.Time != nil {
		m.Time, hasTime = *raw.Time, true
	}
	return m, hasTime, nil
}

// jsonFloat accepts JSON numbers and the strings written for non-finite
// values.
type jsonFloat float64

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if jsontext.Value(b).Kind() == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || !(math.IsNaN(v) || math.IsInf(v, 0)) {
			return fmt.Errorf("invalid number %q", s)
		}
		*f = jsonFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}
