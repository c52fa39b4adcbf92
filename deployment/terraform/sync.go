// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

import (
	"context"
)

// Sync refreshes the Terraform state from the actual AWS resources.
func (t *Terraform) Sync(ctx context.Context) error {
	if err := t.PreFlightCheck(ctx); err != nil {
		return err
	}

	var vars Vars
	if t.config.ExistingInstanceID != "" {
		output, err := t.Output(ctx)
		if err != nil {
			return err
		}
		vars.OriginDomain = output.OriginDomain
	}

	params := append([]string{"refresh", "-input=false"}, t.getParams(vars)...)
	return t.runner(ctx, nil, params...)
}
