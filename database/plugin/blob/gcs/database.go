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

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/blinklabs-io/daonode/database/plugin/blob"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const DefaultTimeout = 30 * time.Second

// BlobStoreGCS stores snapshots in a Google Cloud Storage bucket
type BlobStoreGCS struct {
	promRegistry    prometheus.Registerer
	logger          *GcsLogger
	client          *storage.Client
	bucket          *storage.BucketHandle
	metrics         *blobMetrics
	bucketName      string
	prefix          string
	credentialsFile string
	timeout         time.Duration
}

// New creates a GCS-backed blob store. Start must be called before use.
func New(opts ...BlobStoreGCSOptionFunc) (*BlobStoreGCS, error) {
	db := &BlobStoreGCS{}
	// Apply options
	for _, opt := range opts {
		opt(db)
	}
	// Set defaults
	if db.logger == nil {
		db.logger = NewGcsLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	}
	if db.timeout <= 0 {
		db.timeout = DefaultTimeout
	}
	if db.bucketName == "" {
		return nil, errors.New("gcs blob: bucket not set")
	}
	return db, nil
}

// ParseURL splits a gs://<bucket>/<prefix> URL
func ParseURL(url string) (string, string, error) {
	rest, ok := strings.CutPrefix(url, "gs://")
	if !ok {
		return "", "", fmt.Errorf("gcs blob: invalid URL %q (expected gs://<bucket>)", url)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("gcs blob: no bucket in URL %q", url)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return bucket, prefix, nil
}

// ValidateCredentials checks that the credentials file exists, if one is set
func ValidateCredentials(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("GCS credentials file does not exist: %s", path)
		}
		return fmt.Errorf("GCS credentials file: %w", err)
	}
	return nil
}

// Start creates the storage client
func (d *BlobStoreGCS) Start() error {
	if err := ValidateCredentials(d.credentialsFile); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	clientOpts := []option.ClientOption{storage.WithDisabledClientMetrics()}
	if d.credentialsFile != "" {
		clientOpts = append(
			clientOpts,
			option.WithCredentialsFile(d.credentialsFile),
		)
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return fmt.Errorf("gcs blob: failed in creating storage client: %w", err)
	}
	d.client = client
	d.bucket = client.Bucket(d.bucketName)
	// Configure metrics
	if d.promRegistry != nil {
		d.metrics = newBlobMetrics(d.promRegistry)
	}
	d.logger.Infof("using GCS bucket %s for snapshots", d.bucketName)
	return nil
}

// Close closes the GCS client
func (d *BlobStoreGCS) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

func (d *BlobStoreGCS) objectName(key []byte) string {
	return d.prefix + string(key)
}

func (d *BlobStoreGCS) record(op string, err error) {
	if d.metrics == nil {
		return
	}
	d.metrics.ops.WithLabelValues(op).Inc()
	if err != nil {
		d.metrics.errors.Inc()
	}
}

func (d *BlobStoreGCS) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	r, err := d.bucket.Object(d.objectName(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			d.record("get", nil)
			return nil, blob.ErrKeyNotFound
		}
		d.record("get", err)
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	d.record("get", err)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (d *BlobStoreGCS) Set(key []byte, val []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	w := d.bucket.Object(d.objectName(key)).NewWriter(ctx)
	w.ContentType = "application/cbor"
	if _, err := w.Write(val); err != nil {
		_ = w.Close()
		d.record("set", err)
		return err
	}
	err := w.Close()
	d.record("set", err)
	return err
}

func (d *BlobStoreGCS) Delete(key []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	err := d.bucket.Object(d.objectName(key)).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		err = nil
	}
	d.record("delete", err)
	return err
}

// Keys lists object names under prefix. GCS returns them in lexicographic
// order.
func (d *BlobStoreGCS) Keys(prefix []byte) ([][]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	it := d.bucket.Objects(ctx, &storage.Query{Prefix: d.objectName(prefix)})
	var ret [][]byte
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			d.record("keys", err)
			return nil, err
		}
		ret = append(ret, []byte(strings.TrimPrefix(attrs.Name, d.prefix)))
	}
	d.record("keys", nil)
	return ret, nil
}
