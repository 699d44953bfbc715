package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Verification is the part of a prover verify response this service reads:
// the notarized HTTP request and the response it received.
type Verification struct {
	Request  *Exchange `json:"request"`
	Response *Exchange `json:"response"`
}

// Exchange is one side of the notarized HTTP exchange.
type Exchange struct {
	URL  string `json:"url"`
	Body Text   `json:"body"`
}

// Text holds a body that the prover may encode either as a JSON string or as
// an inline JSON value. Strings are unquoted; anything else is kept verbatim.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

// ParseVerification decodes a prover verify response.
func ParseVerification(raw []byte) (*Verification, error) {
	var v Verification
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("normalize: decoding verification: %w", err)
	}
	return &v, nil
}

// ResponseBody returns the notarized response body, or "" when absent.
func (v *Verification) ResponseBody() string {
	if v == nil || v.Response == nil {
		return ""
	}
	return string(v.Response.Body)
}
