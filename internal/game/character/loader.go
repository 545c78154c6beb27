package character

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/d20sheet/internal/game/item"
)

// document is the wire form of a character with its items inlined.
type document struct {
	Character `yaml:",inline"`
	Items     []item.Envelope `yaml:"items,omitempty" json:"items,omitempty"`
}

func (d document) character() *Character {
	c := d.Character
	c.Items = item.Unwrap(d.Items)
	if c.Kind == "" {
		c.Kind = KindCharacter
	}
	return &c
}

// DecodeYAML reads one character document from r.
//
// Postcondition: Returns a character with Kind defaulted to "character", or a non-nil error.
func DecodeYAML(r io.Reader) (*Character, error) {
	var d document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding character: %w", err)
	}
	return d.character(), nil
}

// LoadFile reads a YAML character document from path.
//
// Precondition: path must be a readable file.
func LoadFile(path string) (*Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c, err := DecodeYAML(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// EncodeYAML writes c as a YAML document.
func EncodeYAML(w io.Writer, c *Character) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Character: *c, Items: item.Wrap(c.Items)}); err != nil {
		return err
	}
	return enc.Close()
}

// MarshalDocument encodes the character fields as JSON without items.
func MarshalDocument(c *Character) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalDocument decodes JSON character fields. Items are left empty.
func UnmarshalDocument(data []byte) (*Character, error) {
	var c Character
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding character: %w", err)
	}
	if c.Kind == "" {
		c.Kind = KindCharacter
	}
	return &c, nil
}

// Validate checks the document and every item.
//
// Postcondition: returns nil iff all fields are valid.
func Validate(c *Character) error {
	if c.ID == "" {
		return fmt.Errorf("character id must not be empty")
	}
	if c.Kind != KindCharacter && c.Kind != KindNPC {
		return fmt.Errorf("character %q: kind must be character or npc; got %q", c.ID, c.Kind)
	}
	seen := make(map[string]bool, len(c.Items))
	for _, it := range c.Items {
		if err := item.Validate(it); err != nil {
			return fmt.Errorf("character %q: %w", c.ID, err)
		}
		id := it.Base().ID
		if seen[id] {
			return fmt.Errorf("character %q: duplicate item id %q", c.ID, id)
		}
		seen[id] = true
	}
	return nil
}
