package change

// Spec is a change line as declared on an item, class feature or condition
// document, before it is bound to a source and evaluated.
type Spec struct {
	Formula string `yaml:"formula" json:"formula"`
	Target  string `yaml:"target" json:"target"`
	Type    string `yaml:"type" json:"type"`
}
