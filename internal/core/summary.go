package core

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Amount is an emissions value aggregated under a name (scope or category).
type Amount struct {
	Name   string
	KgCO2e float64
}

// Breakdown is a JSON object of name -> kg CO2e that keeps the key order it
// was decoded with. The dashboard shows entries in the backend's order.
type Breakdown []Amount

// Sum returns the total of all entries.
func (b Breakdown) Sum() float64 {
	var total float64
	for _, a := range b {
		total += a.KgCO2e
	}
	return total
}

// Get returns the value stored under name.
func (b Breakdown) Get(name string) (float64, bool) {
	for _, a := range b {
		if a.Name == name {
			return a.KgCO2e, true
		}
	}
	return 0, false
}

// Head returns at most the first n entries.
func (b Breakdown) Head(n int) Breakdown {
	if n < 0 {
		n = 0
	}
	if len(b) <= n {
		return b
	}
	return b[:n]
}

// MarshalJSON writes the entries as an object, in order.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(a.KgCO2e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object keeping the key order. null decodes to nil.
func (b *Breakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*b = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("breakdown: expected object, got %v", tok)
	}
	out := Breakdown{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("breakdown: expected string key, got %v", keyTok)
		}
		var v *float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("breakdown %q: %w", key, err)
		}
		a := Amount{Name: key}
		if v != nil {
			a.KgCO2e = *v
		}
		out = append(out, a)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*b = out
	return nil
}
