package item

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Envelope decodes a tagged item document into its variant.
type Envelope struct {
	Item Item
}

type probe struct {
	Type Kind `yaml:"type" json:"type"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Envelope) UnmarshalYAML(n *yaml.Node) error {
	var p probe
	if err := n.Decode(&p); err != nil {
		return err
	}
	it, err := New(p.Type)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	if err := n.Decode(it); err != nil {
		return err
	}
	e.Item = it
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (e Envelope) MarshalYAML() (any, error) { return e.Item, nil }

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	it, err := New(p.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, it); err != nil {
		return err
	}
	e.Item = it
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) { return json.Marshal(e.Item) }

// DecodeJSON decodes one JSON item document.
func DecodeJSON(data []byte) (Item, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e.Item, nil
}

// Wrap converts items into envelopes for encoding.
func Wrap(items []Item) []Envelope {
	out := make([]Envelope, len(items))
	for i, it := range items {
		out[i] = Envelope{Item: it}
	}
	return out
}

// Unwrap extracts the items from envelopes.
func Unwrap(envs []Envelope) []Item {
	out := make([]Item, len(envs))
	for i, e := range envs {
		out[i] = e.Item
	}
	return out
}
