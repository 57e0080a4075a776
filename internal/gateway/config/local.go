package config

import (
	"os"
	"strings"
)

// localArtifactConfig targets the MinIO container of the local compose
// setup. Export stays off unless ARTIFACT_MINIO_ENDPOINT or
// ARTIFACT_S3_ENDPOINT is set.
func localArtifactConfig() ArtifactConfig {
	endpoint := firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT")), strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")))
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), "quill"),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), "quill123"),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "quill-reports"),
		UseSSL:    false,
	}
}
