package storage

import (
	"bytes"
	"context"
	"fmt"

	"sample-scout/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client erstellt einen S3-Client für das Metadaten-Archiv.
func NewS3Client(cfg *config.Config) (*s3.Client, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.ArchiveS3URL,
				SigningRegion:     cfg.ArchiveS3Region,
				HostnameImmutable: true,
			}, nil
		},
	)
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.ArchiveS3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.ArchiveS3Key, cfg.ArchiveS3Secret, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

// ArchivePayload legt eine rohe Metadaten-Payload im Archiv-Bucket ab
// und gibt den Link zurück.
func ArchivePayload(client *s3.Client, bucket, key string, data []byte, cfg *config.Config) (string, error) {
	_, err := client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", err
	}
	link := fmt.Sprintf("%s/%s/%s", cfg.ArchiveS3URL, bucket, key)
	return link, nil
}
