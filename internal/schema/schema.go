// Package schema describes the entity and relationship types of the movie
// graph. Every stage that talks to a model embeds this description.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed movies.yaml
var moviesYAML []byte

type Attribute struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Identifying bool   `yaml:"identifying,omitempty"`
}

type Entity struct {
	Name       string      `yaml:"name"`
	Attributes []Attribute `yaml:"attributes"`
}

type Relationship struct {
	Name       string      `yaml:"name"`
	Source     string      `yaml:"source"`
	Target     string      `yaml:"target"`
	Attributes []Attribute `yaml:"attributes,omitempty"`
}

// Descriptor is immutable after Parse returns.
type Descriptor struct {
	Entities      []Entity       `yaml:"entities"`
	Relationships []Relationship `yaml:"relationships"`
}

// Movies returns the built-in movie/person descriptor.
func Movies() *Descriptor {
	d, err := Parse(moviesYAML)
	if err != nil {
		panic(fmt.Sprintf("schema: embedded descriptor invalid: %v", err))
	}
	return d
}

// Load reads a descriptor from a YAML file, or returns the built-in one
// when path is empty.
func Load(path string) (*Descriptor, error) {
	if path == "" {
		return Movies(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}

	return &d, nil
}

// Validate checks that each entity has exactly one identifying attribute
// and that every relationship endpoint is a declared entity type.
func (d *Descriptor) Validate() error {
	if len(d.Entities) == 0 {
		return errors.New("schema: no entity types declared")
	}

	declared := make(map[string]bool, len(d.Entities))
	for _, e := range d.Entities {
		if e.Name == "" {
			return errors.New("schema: entity type without a name")
		}
		if declared[e.Name] {
			return fmt.Errorf("schema: entity type %s declared twice", e.Name)
		}
		declared[e.Name] = true

		identifying := 0
		for _, a := range e.Attributes {
			if a.Identifying {
				identifying++
			}
		}
		if identifying != 1 {
			return fmt.Errorf("schema: entity type %s must have exactly one identifying attribute, has %d", e.Name, identifying)
		}
	}

	for _, r := range d.Relationships {
		if !declared[r.Source] {
			return fmt.Errorf("schema: relationship %s source %q is not a declared entity type", r.Name, r.Source)
		}
		if !declared[r.Target] {
			return fmt.Errorf("schema: relationship %s target %q is not a declared entity type", r.Name, r.Target)
		}
	}

	return nil
}

// Describe renders the descriptor as prompt text, e.g.
//
//	- Person nodes have properties: person_id (unique), name, ...
//	- Relationships: (Person)-[:ACTED_IN {character_name}]->(Movie); ...
func (d *Descriptor) Describe() string {
	var sb strings.Builder

	for _, e := range d.Entities {
		names := make([]string, len(e.Attributes))
		for i, a := range e.Attributes {
			names[i] = fmt.Sprintf("%s %s", a.Name, a.Type)
			if a.Identifying {
				names[i] += " (unique)"
			}
		}
		fmt.Fprintf(&sb, "- %s nodes have properties: %s\n", e.Name, strings.Join(names, ", "))
	}

	rels := make([]string, len(d.Relationships))
	for i, r := range d.Relationships {
		props := "no properties"
		if len(r.Attributes) > 0 {
			names := make([]string, len(r.Attributes))
			for j, a := range r.Attributes {
				names[j] = a.Name
			}
			props = "properties: " + strings.Join(names, ", ")
		}
		rels[i] = fmt.Sprintf("(%s)-[:%s]->(%s) with %s", r.Source, r.Name, r.Target, props)
	}
	if len(rels) > 0 {
		fmt.Fprintf(&sb, "- Relationships: %s\n", strings.Join(rels, "; "))
	}

	return sb.String()
}
