// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gcs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blinklabs-io/daonode/database/plugin/blob"
	"github.com/blinklabs-io/daonode/database/plugin/blob/gcs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ blob.BlobStore = (*gcs.BlobStoreGCS)(nil)

func TestParseURL(t *testing.T) {
	testDefs := []struct {
		url     string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{url: "gs://snapshots", bucket: "snapshots"},
		{url: "gs://snapshots/mainnet", bucket: "snapshots", prefix: "mainnet/"},
		{url: "gs://snapshots/mainnet/", bucket: "snapshots", prefix: "mainnet/"},
		{url: "s3://snapshots", wantErr: true},
		{url: "gs:///mainnet", wantErr: true},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.url, func(t *testing.T) {
			bucket, prefix, err := gcs.ParseURL(testDef.url)
			if testDef.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testDef.bucket, bucket)
			assert.Equal(t, testDef.prefix, prefix)
		})
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := gcs.New()
	require.Error(t, err)
	store, err := gcs.New(gcs.WithBucket("snapshots"))
	require.NoError(t, err)
	// Closing a store that was never started is a no-op
	require.NoError(t, store.Close())
}

func TestCredentialValidation(t *testing.T) {
	tempDir := t.TempDir()
	credentials := filepath.Join(tempDir, "credentials.json")
	require.NoError(t, os.WriteFile(credentials, []byte("{}"), 0o600))

	require.NoError(t, gcs.ValidateCredentials(""))
	require.NoError(t, gcs.ValidateCredentials(credentials))
	err := gcs.ValidateCredentials(filepath.Join(tempDir, "missing.json"))
	require.ErrorContains(t, err, "GCS credentials file does not exist")

	store, err := gcs.New(
		gcs.WithBucket("snapshots"),
		gcs.WithCredentialsFile(filepath.Join(tempDir, "missing.json")),
	)
	require.NoError(t, err)
	require.Error(t, store.Start())
}
