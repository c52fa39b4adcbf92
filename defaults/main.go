// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

// Package defaults fills configuration structs from their default struct
// tags, reads them from JSON, TOML or YAML files and validates them
// against their validate tags.
package defaults

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type Decoder interface {
	Decode(value any) error
	DisallowUnknownFields()
}

type DecoderFactory func(r io.Reader) Decoder

var decoders = map[string]DecoderFactory{
	".json": NewJSONDecoder,
	".toml": NewTOMLDecoder,
	".yaml": NewYAMLDecoder,
	".yml":  NewYAMLDecoder,
}

// ReadFrom sets the defaults of value and then overrides them with the
// contents of the file at path, decoded according to its extension.
// When path is empty, fallbackPath is used instead if it exists.
func ReadFrom(path, fallbackPath string, value any) error {
	if err := Set(value); err != nil {
		return err
	}

	if path == "" {
		if _, err := os.Stat(fallbackPath); err != nil && os.IsNotExist(err) {
			return nil
		}
		if err := read(fallbackPath, value); err != nil {
			return fmt.Errorf("failed to read from fallback path %s: %w", fallbackPath, err)
		}
		return nil
	}

	if err := read(path, value); err != nil {
		return fmt.Errorf("failed to read from path %s: %w", path, err)
	}
	return nil
}

// read decodes the file at path into value, rejecting unknown fields.
func read(path string, value any) error {
	factory, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return fmt.Errorf("unsupported file format: %q", filepath.Ext(path))
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open file: %w", err)
	}
	defer file.Close()

	dec := factory(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil && err != io.EOF {
		return fmt.Errorf("could not decode file: %w", err)
	}

	return nil
}
