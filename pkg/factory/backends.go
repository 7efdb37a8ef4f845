// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-lightpages.
//
// go-lightpages is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package factory

import (
	"fmt"

	"github.com/jeremyhahn/go-lightpages/pkg/azure"
	"github.com/jeremyhahn/go-lightpages/pkg/common"
	"github.com/jeremyhahn/go-lightpages/pkg/gcs"
	"github.com/jeremyhahn/go-lightpages/pkg/local"
	"github.com/jeremyhahn/go-lightpages/pkg/memory"
	"github.com/jeremyhahn/go-lightpages/pkg/minio"
	"github.com/jeremyhahn/go-lightpages/pkg/s3"
)

func init() {
	RegisterStore(common.BackendS3, configured(s3.New))
	RegisterStore(common.BackendSpaces, newSpaces)
	RegisterStore(common.BackendMinIO, configured(minio.New))
	RegisterStore(common.BackendGCS, configured(gcs.New))
	RegisterStore(common.BackendAzure, configured(azure.New))
	RegisterStore(common.BackendLocal, configured(local.New))
	RegisterStore(common.BackendMemory, configured(memory.New))
}

// SpacesEndpoint returns the DigitalOcean Spaces endpoint for region.
func SpacesEndpoint(region string) string {
	return fmt.Sprintf("https://%s.digitaloceanspaces.com", region)
}

// newSpaces configures the S3 store against DigitalOcean Spaces, deriving
// the endpoint from the region unless one is given.
func newSpaces(settings map[string]string) (common.ObjectStore, error) {
	merged := make(map[string]string, len(settings)+1)
	for k, v := range settings {
		merged[k] = v
	}
	if merged["endpoint"] == "" && merged["region"] != "" {
		merged["endpoint"] = SpacesEndpoint(merged["region"])
	}
	return configured(s3.New)(merged)
}
