package util

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// GetS3Client builds a minio client for an s3+http:// or s3+https:// URL.
// Credentials come from the standard AWS environment variables.
func GetS3Client(u *url.URL) (*minio.Client, error) {

	useSSL := false
	if u.Scheme == "s3+https" {
		useSSL = true
	}

	accessKeyID := os.Getenv("AWS_ACCESS_KEY_ID")
	if accessKeyID == "" {
		return nil, fmt.Errorf("AWS_ACCESS_KEY_ID not set")
	}
	secretAccessKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if secretAccessKey == "" {
		return nil, fmt.Errorf("AWS_SECRET_ACCESS_KEY not set")
	}

	mc, err := minio.New(u.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, os.Getenv("AWS_SESSION_TOKEN")),
		Secure: useSSL,
		Region: os.Getenv("AWS_REGION"),
	})
	return mc, err
}

// GetS3URL returns the parsed URL when path uses one of the s3+ schemes,
// nil otherwise.
func GetS3URL(path string) *url.URL {
	if IsS3URL(path) {
		u, err := url.Parse(path)
		if err != nil {
			return nil
		}
		return u
	}
	return nil
}

func IsS3URL(path string) bool {
	return strings.HasPrefix(path, "s3+http://") || strings.HasPrefix(path, "s3+https://")
}

// SplitBucket splits the path of an s3 URL into bucket name and object key.
func SplitBucket(u *url.URL) (string, string, error) {
	tmp := strings.SplitN(u.Path, "/", 3)
	if len(tmp) < 2 || tmp[1] == "" {
		return "", "", fmt.Errorf("no bucket in %s", u.String())
	}
	key := ""
	if len(tmp) > 2 {
		key = tmp[2]
	}
	return tmp[1], key, nil
}
