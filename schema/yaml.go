package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/syssam/deepview"
)

// yamlSchema mirrors the declarative schema file layout:
//
//	entities:
//	  - name: User
//	    table: users
//	    fields:
//	      - {name: name, type: string}
//	      - {name: email, type: string, unique: true}
//	    relations:
//	      - {name: posts, kind: to_many, target: Post}
type yamlSchema struct {
	Entities []yamlEntity `yaml:"entities"`
}

type yamlEntity struct {
	Name      string         `yaml:"name"`
	Table     string         `yaml:"table"`
	Fields    []yamlField    `yaml:"fields"`
	Relations []yamlRelation `yaml:"relations"`
}

type yamlField struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional"`
	Unique   bool   `yaml:"unique"`
}

type yamlRelation struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Target string `yaml:"target"`
	Column string `yaml:"column"`
}

var fieldTypes = map[string]FieldType{
	"string": TypeString,
	"int":    TypeInt,
	"float":  TypeFloat,
	"bool":   TypeBool,
	"time":   TypeTime,
	"bytes":  TypeBytes,
	"json":   TypeJSON,
}

var kinds = map[string]Kind{
	"to_one":  ToOne,
	"to_many": ToMany,
	"reverse": Reverse,
}

// FromYAML builds a validated Graph from a declarative schema document.
func FromYAML(data []byte) (*Graph, error) {
	var doc yamlSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("deepview: schema: decode yaml: %w", err)
	}
	types := make([]*EntityType, 0, len(doc.Entities))
	for _, e := range doc.Entities {
		t := &EntityType{Name: e.Name, Table: e.Table}
		for _, f := range e.Fields {
			ft, ok := fieldTypes[f.Type]
			if !ok {
				return nil, deepview.NewSchemaError(e.Name, "", "field %q has unknown type %q", f.Name, f.Type)
			}
			t.Fields = append(t.Fields, Field{Name: f.Name, Type: ft, Optional: f.Optional, Unique: f.Unique})
		}
		for _, r := range e.Relations {
			k, ok := kinds[r.Kind]
			if !ok {
				return nil, deepview.NewSchemaError(e.Name, r.Name, "unknown relation kind %q", r.Kind)
			}
			t.Relations = append(t.Relations, Relation{Name: r.Name, Kind: k, Target: r.Target, Column: r.Column})
		}
		types = append(types, t)
	}
	return NewGraph(types...)
}
