package services

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/songgate/internal/config"
)

type fakeS3 struct {
	s3iface.S3API
	puts []*s3.PutObjectInput
	err  error
}

func (f *fakeS3) PutObject(input *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, input)
	return &s3.PutObjectOutput{}, nil
}

type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }

func upload(name string, data []byte) (multipart.File, *multipart.FileHeader) {
	header := &multipart.FileHeader{
		Filename: name,
		Size:     int64(len(data)),
		Header:   textproto.MIMEHeader{"Content-Type": {"image/png"}},
	}
	return memFile{bytes.NewReader(data)}, header
}

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x01}

func storageConfig() *config.Config {
	return &config.Config{AWS: config.AWSConfig{
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		S3Bucket:        "songgate-media",
	}}
}

func TestUploadCover(t *testing.T) {
	client := &fakeS3{}
	svc := newStorageServiceWithClient(client, storageConfig())

	file, header := upload("cover.PNG", pngHeader)
	result, err := svc.UploadCover(file, header)
	require.NoError(t, err)

	require.Len(t, client.puts, 1)
	put := client.puts[0]
	assert.Equal(t, "songgate-media", aws.StringValue(put.Bucket))
	assert.True(t, strings.HasPrefix(aws.StringValue(put.Key), "covers/"))
	assert.True(t, strings.HasSuffix(aws.StringValue(put.Key), ".png"))
	assert.Equal(t, "public-read", aws.StringValue(put.ACL))
	assert.Equal(t, result.Checksum, aws.StringValue(put.Metadata["sha256"]))

	assert.Equal(t, "s3://songgate-media/"+result.Key, result.Reference)
	assert.Equal(t, "https://songgate-media.s3.us-east-1.amazonaws.com/"+result.Key, result.URL)
	assert.Equal(t, int64(len(pngHeader)), result.Size)
	assert.Len(t, result.Checksum, 64)
}

func TestUploadCoverRejectsNonImages(t *testing.T) {
	client := &fakeS3{}
	svc := newStorageServiceWithClient(client, storageConfig())

	file, header := upload("cover.png", []byte("#!/bin/sh\necho hi\n"))
	_, err := svc.UploadCover(file, header)
	assert.ErrorIs(t, err, ErrInvalidImage)

	file, header = upload("cover.bmp", pngHeader)
	_, err = svc.UploadCover(file, header)
	assert.Error(t, err)
	assert.Empty(t, client.puts)
}

func TestUploadFailure(t *testing.T) {
	svc := newStorageServiceWithClient(&fakeS3{err: errors.New("access denied")}, storageConfig())
	file, header := upload("cover.png", pngHeader)
	_, err := svc.UploadCover(file, header)
	assert.ErrorContains(t, err, "access denied")
}

func TestStorageNotConfigured(t *testing.T) {
	svc, err := NewStorageService(&config.Config{}, testLogger())
	require.NoError(t, err)
	assert.False(t, svc.IsConfigured())

	file, header := upload("cover.png", pngHeader)
	_, err = svc.UploadCover(file, header)
	assert.ErrorIs(t, err, ErrStorageNotConfigured)

	_, err = svc.PresignObject("", "covers/a.png", time.Minute)
	assert.ErrorIs(t, err, ErrStorageNotConfigured)
}

func TestPresignObject(t *testing.T) {
	svc, err := NewStorageService(storageConfig(), testLogger())
	require.NoError(t, err)
	require.True(t, svc.IsConfigured())

	url, err := svc.PresignObject("", "songs/track.flac", 5*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "songgate-media")
	assert.Contains(t, url, "songs/track.flac")
	assert.Contains(t, url, "X-Amz-Signature=")

	url, err = svc.PresignObject("other-bucket", "a.flac", time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "other-bucket")
}

func TestIsValidImageType(t *testing.T) {
	assert.True(t, isValidImageType([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.True(t, isValidImageType([]byte("GIF89a....")))
	assert.True(t, isValidImageType(pngHeader))
	assert.False(t, isValidImageType([]byte("GIF")))
	assert.False(t, isValidImageType(nil))
}
