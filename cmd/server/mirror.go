package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"conquest.ai/internal/persistence/objstore"
)

// buildMirror returns nil unless CONQUEST_MIRROR is set. Closed log files,
// snapshots and session archives are then copied to an S3-compatible bucket.
func buildMirror(dataDir string, logger *log.Logger) (*objstore.Uploader, error) {
	if !envBool("CONQUEST_MIRROR", false) {
		return nil, nil
	}
	cfg := objstore.Config{
		Endpoint:        strings.TrimSpace(os.Getenv("CONQUEST_S3_ENDPOINT")),
		Bucket:          strings.TrimSpace(os.Getenv("CONQUEST_S3_BUCKET")),
		Region:          strings.TrimSpace(os.Getenv("CONQUEST_S3_REGION")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("CONQUEST_S3_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("CONQUEST_S3_SECRET_ACCESS_KEY")),
	}
	client, err := objstore.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("CONQUEST_MIRROR=true: %w", err)
	}
	return objstore.NewUploader(client, objstore.UploaderConfig{
		DataDir: dataDir,
		Prefix:  strings.TrimSpace(os.Getenv("CONQUEST_S3_PREFIX")),
		Workers: envInt("CONQUEST_MIRROR_WORKERS", 2),
		Queue:   envInt("CONQUEST_MIRROR_QUEUE", 1024),
		Logger:  logger,
	}), nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
