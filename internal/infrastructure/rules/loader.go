// Package rules loads keyword configuration for certificate parsing from YAML.
package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/calibration-tracker/internal/core/parsing"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "mem://calibration-tracker/rules.schema.json"

var (
	once      sync.Once
	schema    *jsonschema.Schema
	schemaErr error
)

func compiled() (*jsonschema.Schema, error) {
	once.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add rules schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Load reads path, or returns the defaults when path is empty.
func Load(path string) (parsing.Rules, error) {
	if strings.TrimSpace(path) == "" {
		return parsing.DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return parsing.Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse validates YAML rules against the schema. Sections left out keep their defaults.
func Parse(data []byte) (parsing.Rules, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return parsing.Rules{}, fmt.Errorf("parse rules yaml: %w", err)
	}
	if doc == nil {
		return parsing.DefaultRules(), nil
	}

	s, err := compiled()
	if err != nil {
		return parsing.Rules{}, err
	}
	// Round-trip through JSON so the validator sees plain JSON values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return parsing.Rules{}, fmt.Errorf("convert rules: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return parsing.Rules{}, fmt.Errorf("convert rules: %w", err)
	}
	if err := s.Validate(value); err != nil {
		return parsing.Rules{}, fmt.Errorf("invalid rules: %w", err)
	}

	var r parsing.Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return parsing.Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	return r.Merge(parsing.DefaultRules()), nil
}
