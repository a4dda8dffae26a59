package resources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Opt is a tri-state update field. A key absent from the request leaves the
// stored value untouched; an explicit null or empty string clears it; any
// other value replaces it. UnmarshalJSON only runs for present keys, so the
// zero Opt means "not sent".
type Opt struct {
	Set   bool
	Value string
}

// Present reports whether the field was sent at all.
func (o Opt) Present() bool { return o.Set }

// Cleared reports whether the field was sent as null or empty.
func (o Opt) Cleared() bool { return o.Set && o.Value == "" }

// String returns the replacement value, empty when cleared or absent.
func (o Opt) String() string { return o.Value }

func (o *Opt) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected string or null: %w", err)
	}
	o.Value = strings.TrimSpace(s)
	return nil
}

func (o Opt) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// FormOpt reads a tri-state field from posted form values. Multipart forms
// have no null literal, so a present-but-empty value clears the field.
func FormOpt(form url.Values, key string) Opt {
	if _, ok := form[key]; !ok {
		return Opt{}
	}
	return Opt{Set: true, Value: strings.TrimSpace(form.Get(key))}
}
