package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xorcare/pointer"
)

type S3ClientInterface interface {
	GetObjectStream(ctx context.Context, bucket string, key string) (body io.ReadCloser, size int64, err error)
}

type UpdaterS3Client struct {
	awss3client *awss3.Client
}

func NewS3Client(ctx context.Context, endpoint string) (*UpdaterS3Client, error) {
	awscfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	if endpoint != "" {
		const defaultRegion = "us-east-1"
		staticResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				PartitionID:       "aws",
				URL:               endpoint,
				SigningRegion:     defaultRegion,
				HostnameImmutable: true,
			}, nil
		})

		awscfg.Region = defaultRegion
		awscfg.EndpointResolverWithOptions = staticResolver
	}

	return &UpdaterS3Client{awss3client: awss3.NewFromConfig(awscfg)}, nil
}

// The size is -1 when S3 did not report a content length.
func (t UpdaterS3Client) GetObjectStream(ctx context.Context, bucket string, key string) (io.ReadCloser, int64, error) {
	output, err := t.awss3client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: pointer.String(bucket),
		Key:    pointer.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("error getting object s3://%s/%s: %w", bucket, key, err)
	}
	size := int64(-1)
	if output.ContentLength != nil {
		size = aws.ToInt64(output.ContentLength)
	}
	return output.Body, size, nil
}
