package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GCSBucketConfigured reports whether result-file archiving is enabled.
func GCSBucketConfigured() bool {
	return strings.TrimSpace(os.Getenv("GCS_BUCKET")) != ""
}

// UploadBytesToGCS writes data to the configured bucket and returns the
// object path ("gs://bucket/objectName").
func UploadBytesToGCS(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", err
	}
	if err := wc.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
