// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

import (
	"context"
)

// Destroy destroys the resources created by Terraform. Reused resources
// and the log bucket are left untouched.
func (t *Terraform) Destroy(ctx context.Context) error {
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

	params := append([]string{"destroy", "-input=false", "-auto-approve"}, t.getParams(vars)...)
	if err := t.runner(ctx, nil, params...); err != nil {
		return err
	}
	t.output = nil
	return nil
}
