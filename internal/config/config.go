// Package config implements Config objects: named records of typed fields
// referenced from LoopIR via ReadConfig/WriteConfig.
package config

import "fmt"

// FieldType is the type lattice available to configuration fields. Kept
// distinct from loopir.BaseType to avoid an import cycle (loopir depends on
// config, not the reverse).
type FieldType int

const (
	FieldBool FieldType = iota
	FieldIndex
	FieldSize
	FieldStride
	FieldF32
	FieldF64
	FieldI8
	FieldI32
)

func (t FieldType) String() string {
	switch t {
	case FieldBool:
		return "bool"
	case FieldIndex:
		return "index"
	case FieldSize:
		return "size"
	case FieldStride:
		return "stride"
	case FieldF32:
		return "f32"
	case FieldF64:
		return "f64"
	case FieldI8:
		return "i8"
	case FieldI32:
		return "i32"
	default:
		return "?"
	}
}

// Config declares a name and an ordered set of typed fields.
type Config struct {
	Name   string
	fields map[string]FieldType
	order  []string
}

// New creates an empty Config named name.
func New(name string) *Config {
	return &Config{Name: name, fields: map[string]FieldType{}}
}

// WithField registers a field and returns the receiver for chaining, the
// way internal/types/registry.go builds up a registry fluently.
func (c *Config) WithField(name string, typ FieldType) *Config {
	if _, ok := c.fields[name]; !ok {
		c.order = append(c.order, name)
	}
	c.fields[name] = typ
	return c
}

// HasField reports whether field is declared on c.
func (c *Config) HasField(field string) bool {
	_, ok := c.fields[field]
	return ok
}

// Lookup returns the declared type of field, or an error if undeclared.
func (c *Config) Lookup(field string) (FieldType, error) {
	t, ok := c.fields[field]
	if !ok {
		return 0, fmt.Errorf("config %q has no field %q", c.Name, field)
	}
	return t, nil
}

// Fields returns field names in declaration order.
func (c *Config) Fields() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
