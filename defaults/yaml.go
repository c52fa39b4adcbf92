// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package defaults

import (
	"io"

	"gopkg.in/yaml.v3"
)

type YAMLDecoder struct {
	*yaml.Decoder
}

// DisallowUnknownFields makes Decode fail on keys with no matching field.
func (d *YAMLDecoder) DisallowUnknownFields() {
	d.Decoder.KnownFields(true)
}

func NewYAMLDecoder(r io.Reader) Decoder {
	return &YAMLDecoder{
		yaml.NewDecoder(r),
	}
}
