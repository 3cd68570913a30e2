package placeholder

// Category groups placeholder definitions.
type Category string

const (
	CategoryRecipient   Category = "recipient"
	CategoryEvent       Category = "event"
	CategoryCertificate Category = "certificate"
	CategoryCustom      Category = "custom"
)

// Definition describes a recognized placeholder token.
type Definition struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	SampleValue string   `json:"sample_value"`
}

// Field returns the data field name for the definition key.
func (d Definition) Field() string {
	return FieldName(d.Key)
}

// Data maps brace-stripped field names to substitution values.
type Data map[string]string

// Get returns the value for a field, or "" when absent.
func (d Data) Get(field string) string {
	if d == nil {
		return ""
	}
	return d[field]
}

// Clone returns a copy of the data.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
