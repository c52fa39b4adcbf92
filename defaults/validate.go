// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package defaults

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var (
	rangeRegex = regexp.MustCompile(`range:(\[|\()(\S*)\,(\S*)(\]|\))`)
	oneofRegex = regexp.MustCompile(`oneof:(\{)(.*)(\})`)
	eachRegex  = regexp.MustCompile(`each:(.+)`)

	awsRegionRegex      = regexp.MustCompile(`^[a-z]{2}(-gov)?-[a-z]+-[0-9]$`)
	bucketRegex         = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)
	instanceIDRegex     = regexp.MustCompile(`^i-([0-9a-f]{8}|[0-9a-f]{17})$`)
	distributionIDRegex = regexp.MustCompile(`^[A-Z0-9]{13,14}$`)
)

// Validate validates each field of the value
func Validate(value any) error {
	v := reflect.Indirect(reflect.ValueOf(value))
	t := v.Type()

	// Look for an IsValid method on value. To check that this IsValid method
	// exists, we need to retrieve it with MethodByName, which returns a
	// reflect.Value. This reflect.Value, m, has a method that is called
	// IsValid as well, which tells us whether v actually represents the
	// function we're looking for. But they're two completely different IsValid
	// methods. Yes, this is confusing.
	m := reflect.ValueOf(value).MethodByName("IsValid")
	if m.IsValid() {
		e := m.Call([]reflect.Value{})
		err, ok := e[0].Interface().(error)
		if ok && err != nil {
			return err
		}
	}

	// Non-struct values have no tags to look up, so they're assumed valid.
	if t.Kind() != reflect.Struct {
		return nil
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		switch field.Kind() {
		case reflect.Struct:
			if err := Validate(field.Interface()); err != nil {
				return err
			}
		case reflect.Slice:
			if tag, ok := sf.Tag.Lookup("validate"); ok {
				if err := validate(tag, sf.Name, v, field); err != nil {
					return err
				}
			}
			for j := 0; j < field.Len(); j++ {
				if err := Validate(field.Index(j).Interface()); err != nil {
					return err
				}
			}
		case reflect.Bool, reflect.Int, reflect.Int64, reflect.Float64, reflect.String:
			tag, ok := sf.Tag.Lookup("validate")
			if !ok {
				continue
			}
			if err := validate(tag, sf.Name, v, field); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unimplemented struct field type: %s", sf.Name)
		}
	}
	return nil
}

func validate(validation, fieldName string, p, v reflect.Value) error {
	switch validation {
	case "url":
		if _, err := url.ParseRequestURI(v.String()); err != nil {
			return fmt.Errorf("%s: %w", fieldName, err)
		}
	case "notempty":
		switch v.Kind() {
		case reflect.String:
			if v.String() == "" {
				return fmt.Errorf("%s is empty", fieldName)
			}
		case reflect.Slice:
			if v.Len() == 0 {
				return fmt.Errorf("%s is empty", fieldName)
			}
		}
	case "file":
		// Empty paths are left to the notempty validation.
		s := v.String()
		if s == "" {
			return nil
		}
		if _, err := os.Stat(s); err != nil {
			return fmt.Errorf("%s: %w", fieldName, err)
		}
	case "awsregion":
		if !awsRegionRegex.MatchString(v.String()) {
			return fmt.Errorf("%s: %q is not a valid AWS region", fieldName, v.String())
		}
	case "bucket":
		s := v.String()
		if !bucketRegex.MatchString(s) || strings.Contains(s, "..") {
			return fmt.Errorf("%s: %q is not a valid S3 bucket name", fieldName, s)
		}
	case "instanceid":
		if s := v.String(); s != "" && !instanceIDRegex.MatchString(s) {
			return fmt.Errorf("%s: %q is not a valid EC2 instance id", fieldName, s)
		}
	case "distributionid":
		if s := v.String(); s != "" && !distributionIDRegex.MatchString(s) {
			return fmt.Errorf("%s: %q is not a valid CloudFront distribution id", fieldName, s)
		}
	default:
		switch {
		case strings.HasPrefix(validation, "range"):
			if !rangeRegex.MatchString(validation) {
				return fmt.Errorf("invalid range declaration %q", validation)
			}
			matches := rangeRegex.FindStringSubmatch(validation)
			mins, err := validateFromField(p, matches[2])
			if err != nil {
				return err
			}
			maxs, err := validateFromField(p, matches[3])
			if err != nil {
				return err
			}
			if err := validateFromRange(v, mins, maxs, matches[1], matches[4]); err != nil {
				return fmt.Errorf("%s is not in the range of %s: %w", fieldName, validation, err)
			}
		case strings.HasPrefix(validation, "oneof"):
			if !oneofRegex.MatchString(validation) {
				return errors.New("invalid oneof declaration")
			}
			valids := oneofRegex.FindStringSubmatch(validation)[2]
			if err := validateFromOneofValues(v, strings.Split(valids, ",")); err != nil {
				return fmt.Errorf("%s is not valid: %w", fieldName, err)
			}
		case strings.HasPrefix(validation, "each"):
			if !eachRegex.MatchString(validation) {
				return errors.New("invalid each declaration")
			}
			if v.Kind() != reflect.Slice {
				return fmt.Errorf("validation 'each' can only be applied to slices, but %s is %s", fieldName, v.Kind())
			}
			eachValidation := eachRegex.FindStringSubmatch(validation)[1]
			for i := 0; i < v.Len(); i++ {
				if err := validate(eachValidation, fmt.Sprintf("%s[%d]", fieldName, i), p, v.Index(i)); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("validation type %q unknown", validation)
		}
	}
	return nil
}

func validateFromRange(value reflect.Value, mins, maxs, minInterval, maxInterval string) error {
	var min, max, val float64
	var err error
	switch value.Kind() {
	case reflect.Int, reflect.Int64:
		val = float64(value.Int())
	case reflect.Float64:
		val = value.Float()
	default:
		return errors.New("could not validate this value within a range")
	}
	if mins != "" {
		if min, err = strconv.ParseFloat(mins, 64); err != nil {
			return err
		}
	}
	if maxs != "" {
		if max, err = strconv.ParseFloat(maxs, 64); err != nil {
			return err
		}
	}

	if mins != "" {
		if minInterval == "(" && min >= val {
			return errors.New("value is lesser or equal")
		}
		if minInterval == "[" && min > val {
			return errors.New("value is lesser")
		}
	}

	if maxs != "" {
		if maxInterval == ")" && max <= val {
			return errors.New("value is greater or equal")
		}
		if maxInterval == "]" && max < val {
			return errors.New("value is greater")
		}
	}
	return nil
}

// validateFromField resolves a $Field reference to the value of the sibling
// field, so ranges can depend on other settings.
func validateFromField(value reflect.Value, valuestr string) (string, error) {
	if len(valuestr) == 0 || valuestr[0] != '$' {
		return valuestr, nil
	}

	f := value.FieldByName(valuestr[1:])
	if !f.IsValid() {
		return "", fmt.Errorf("%q has no field %q", value.Type(), valuestr[1:])
	}

	switch f.Kind() {
	case reflect.Int, reflect.Int64:
		return strconv.FormatInt(f.Int(), 10), nil
	case reflect.Float64:
		return strconv.FormatFloat(f.Float(), 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%q is not a supported field type for using as parameter", f.Kind())
	}
}

func validateFromOneofValues(value reflect.Value, values []string) error {
	valids := make([]string, len(values))
	for i, s := range values {
		valids[i] = strings.TrimSpace(s)
	}
	switch value.Kind() {
	case reflect.String:
		s := value.String()
		for _, str := range valids {
			if s == str {
				return nil
			}
		}
	case reflect.Int, reflect.Int64:
		d := value.Int()
		for _, str := range valids {
			n, err := strconv.ParseInt(str, 10, 64)
			if err != nil {
				return err
			}
			if d == n {
				return nil
			}
		}
	default:
		return errors.New("unsupported field type for oneof validation")
	}
	return fmt.Errorf("value is not one of valid values: %q", valids)
}
