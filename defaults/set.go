// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package defaults

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Set sets the default values to fields
func Set(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.New("value should be a pointer")
	}
	return structDefaults(rv.Elem())
}

// structDefaults assigns the default values of a struct, recursing into
// nested structs and slices of structs with a default_size tag.
func structDefaults(v reflect.Value) error {
	if v.Kind() != reflect.Struct {
		return errors.New("value should be struct type")
	}
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		sf := t.Field(i)

		switch field.Kind() {
		case reflect.Struct:
			if err := structDefaults(field); err != nil {
				return err
			}
		case reflect.Slice:
			tag, ok := sf.Tag.Lookup("default_size")
			if !ok {
				continue
			}
			size, err := strconv.Atoi(tag)
			if err != nil {
				return fmt.Errorf("invalid size definition for %s: %q", sf.Name, tag)
			}
			s, err := createSlice(field.Type(), size)
			if err != nil {
				return err
			}
			field.Set(s)
		case reflect.Bool, reflect.Int, reflect.Int64, reflect.Float64, reflect.String:
			tag, ok := sf.Tag.Lookup("default")
			if !ok {
				continue
			}
			if err := setValue(field, tag); err != nil {
				return fmt.Errorf("could not set value of %s: %w", sf.Name, err)
			}
		default:
			return fmt.Errorf("unimplemented struct field type: %s", sf.Type.Kind())
		}
	}
	return nil
}

// setValue parses data into the field according to its kind.
func setValue(field reflect.Value, data string) error {
	data = strings.TrimSpace(data)
	switch field.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(data)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.String:
		field.SetString(data)
	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(data, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float64:
		f, err := strconv.ParseFloat(data, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	}
	return nil
}

// createSlice returns a slice of the given type with size elements. Struct
// elements get their own defaults.
func createSlice(t reflect.Type, size int) (reflect.Value, error) {
	s := reflect.MakeSlice(t, size, size)
	if t.Elem().Kind() != reflect.Struct {
		return s, nil
	}
	for i := 0; i < size; i++ {
		if err := structDefaults(s.Index(i)); err != nil {
			return reflect.Value{}, err
		}
	}
	return s, nil
}
