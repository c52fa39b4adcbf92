// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package defaults

import (
	"encoding/json"
	"io"
)

// NewJSONDecoder returns a Decoder reading JSON from r.
func NewJSONDecoder(r io.Reader) Decoder {
	return json.NewDecoder(r)
}
