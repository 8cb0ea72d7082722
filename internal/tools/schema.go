package tools

// Schema is the JSON Schema of a tool's argument object.
type Schema struct {
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one argument.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Format      string              `json:"format,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

func object(props map[string]Property, required ...string) Schema {
	if props == nil {
		props = map[string]Property{}
	}
	return Schema{Properties: props, Required: required}
}

func str(desc string) Property     { return Property{Type: "string", Description: desc} }
func number(desc string) Property  { return Property{Type: "number", Description: desc} }
func integer(desc string) Property { return Property{Type: "integer", Description: desc} }
func boolean(desc string) Property { return Property{Type: "boolean", Description: desc} }

func date(desc string) Property {
	return Property{Type: "string", Format: "date", Description: desc + " (YYYY-MM-DD)"}
}

func enum(desc string, values ...string) Property {
	return Property{Type: "string", Description: desc, Enum: values}
}

func arrayOf(desc string, items Property) Property {
	return Property{Type: "array", Description: desc, Items: &items}
}

func nested(desc string, props map[string]Property, required ...string) Property {
	return Property{Type: "object", Description: desc, Properties: props, Required: required}
}
