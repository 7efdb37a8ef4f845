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

package config

import (
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-lightpages/pkg/common"
)

// SpacesBaseURL is the public URL of a DigitalOcean Spaces bucket.
func SpacesBaseURL(bucket, region string) string {
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com", bucket, region)
}

// S3BaseURL is the public virtual-hosted URL of an S3 bucket.
func S3BaseURL(bucket, region string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}

// settingKeys are the backend setting names in their canonical case.
// Viper lowercases map keys read from files and the environment.
var settingKeys = []string{
	"accessKey", "accountKey", "accountName", "bucket", "containerName",
	"credentialsFile", "endpoint", "path", "region", "secretKey",
	"timeout", "usePathStyle", "useSSL",
}

func canonicalSettings(in map[string]string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		for _, known := range settingKeys {
			if strings.EqualFold(k, known) {
				k = known
				break
			}
		}
		out[k] = v
	}
	return out
}

func (c *CDNConfig) applyDefaults() {
	c.Settings = canonicalSettings(c.Settings)
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.BaseURL != "" || c.Bucket == "" || c.Region == "" {
		return
	}
	switch c.Backend {
	case common.BackendSpaces:
		c.BaseURL = SpacesBaseURL(c.Bucket, c.Region)
	case common.BackendS3:
		c.BaseURL = S3BaseURL(c.Bucket, c.Region)
	}
}

// Configured reports whether every value the backend requires is present.
// When false no store is built and images are never uploaded.
func (c CDNConfig) Configured() bool {
	switch c.Backend {
	case common.BackendSpaces, common.BackendS3:
		return c.Region != "" && c.AccessKey != "" && c.AccessSecret != "" && c.Bucket != ""
	case common.BackendMinIO:
		return c.Endpoint != "" && c.AccessKey != "" && c.AccessSecret != "" && c.Bucket != ""
	case common.BackendGCS:
		return c.Bucket != ""
	case common.BackendAzure:
		return c.AccessKey != "" && c.AccessSecret != "" && c.Bucket != ""
	case common.BackendLocal:
		return c.Bucket != "" || c.Settings["path"] != ""
	case common.BackendMemory:
		return true
	}
	return false
}

// StoreSettings converts the CDN config to the backend's settings map.
// Entries in Settings are copied first and overridden by the typed fields.
func (c CDNConfig) StoreSettings() map[string]string {
	settings := make(map[string]string, len(c.Settings)+6)
	for k, v := range c.Settings {
		settings[k] = v
	}
	set := func(key, value string) {
		if value != "" {
			settings[key] = value
		}
	}

	if c.Timeout > 0 {
		settings["timeout"] = c.Timeout.String()
	}

	switch c.Backend {
	case common.BackendSpaces, common.BackendS3, common.BackendMinIO:
		set("bucket", c.Bucket)
		set("region", c.Region)
		set("accessKey", c.AccessKey)
		set("secretKey", c.AccessSecret)
		set("endpoint", c.Endpoint)
	case common.BackendGCS:
		set("bucket", c.Bucket)
		set("endpoint", c.Endpoint)
	case common.BackendAzure:
		set("accountName", c.AccessKey)
		set("accountKey", c.AccessSecret)
		set("containerName", c.Bucket)
		set("endpoint", c.Endpoint)
	case common.BackendLocal:
		set("path", c.Bucket)
	}
	return settings
}
