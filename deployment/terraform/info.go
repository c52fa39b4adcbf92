// Copyright (c) 2019-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package terraform

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Info displays information about the current deployment.
func (t *Terraform) Info(ctx context.Context) error {
	output, err := t.Output(ctx)
	if err != nil {
		return err
	}

	if output.IsEmpty() {
		fmt.Println("No active deployment found.")
		return nil
	}

	t.displayInfo(output)

	return nil
}

func (t *Terraform) displayInfo(output *Output) {
	t.writeInfo(os.Stdout, output)
}

func (t *Terraform) writeInfo(w io.Writer, output *Output) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, "Deployment information:")
	fmt.Fprintln(w, "Log host: "+output.Instance.Host())
	if t.config.OpenSearchSettings.InstallDashboards {
		fmt.Fprintln(w, "OpenSearch Dashboards URL: http://"+output.Instance.Host()+":"+strconv.Itoa(t.config.OpenSearchSettings.DashboardsPort))
	}
	if url := output.DistributionURL(); url != "" {
		fmt.Fprintln(w, "CloudFront URL: "+url)
	}
	if output.DistributionID != "" {
		fmt.Fprintln(w, "CloudFront distribution: "+output.DistributionID)
	}
	if output.LogBucket != "" {
		fmt.Fprintln(w, "Access logs: s3://"+output.LogBucket+"/"+t.config.LogBucketSettings.Prefix)
	}
	fmt.Fprintln(w, "==================================================")
}
