// internal/services/storage_service.go
package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/songgate/internal/config"
	"github.com/javajoker/songgate/internal/utils"
)

var (
	ErrStorageNotConfigured = errors.New("storage: S3 is not configured")
	ErrInvalidImage         = errors.New("storage: invalid image file")
)

// StorageService stores cover art in S3 and signs download URLs for
// listings whose content lives in a bucket.
type StorageService struct {
	s3Client s3iface.S3API
	config   *config.Config
	log      *logrus.Entry
}

type UploadResult struct {
	Reference string `json:"reference"`
	URL       string `json:"url"`
	Key       string `json:"key"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mime_type"`
	Checksum  string `json:"checksum"`
}

type UploadOptions struct {
	Folder       string
	MaxSize      int64 // in bytes
	AllowedTypes []string
	IsPublic     bool
}

func NewStorageService(config *config.Config, logger *logrus.Logger) (*StorageService, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	svc := &StorageService{config: config, log: logger.WithField("component", "storage")}
	if config.AWS.AccessKeyID == "" || config.AWS.S3Bucket == "" {
		// Uploads and presigning are disabled for local development
		return svc, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.s3Client = s3.New(sess)
	return svc, nil
}

// newStorageServiceWithClient is used by tests to inject a fake S3 client.
func newStorageServiceWithClient(client s3iface.S3API, config *config.Config) *StorageService {
	return &StorageService{s3Client: client, config: config, log: logrus.NewEntry(logrus.StandardLogger())}
}

func (s *StorageService) IsConfigured() bool {
	return s.s3Client != nil
}

// UploadCover validates an image and stores it under covers/. The returned
// Reference is what a listing keeps as its cover reference.
func (s *StorageService) UploadCover(file multipart.File, header *multipart.FileHeader) (*UploadResult, error) {
	if s.s3Client == nil {
		return nil, ErrStorageNotConfigured
	}
	if err := s.ValidateImage(file); err != nil {
		return nil, err
	}
	return s.UploadFile(file, header, s.GetDefaultUploadOptions("covers"))
}

func (s *StorageService) UploadFile(file multipart.File, header *multipart.FileHeader, options UploadOptions) (*UploadResult, error) {
	if s.s3Client == nil {
		return nil, ErrStorageNotConfigured
	}

	// Validate file size
	if options.MaxSize > 0 && header.Size > options.MaxSize {
		return nil, fmt.Errorf("file size %d bytes exceeds maximum allowed size %d bytes", header.Size, options.MaxSize)
	}

	// Validate file type
	if len(options.AllowedTypes) > 0 {
		fileExt := strings.ToLower(filepath.Ext(header.Filename))
		allowed := false
		for _, allowedType := range options.AllowedTypes {
			if fileExt == allowedType {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("file type %s is not allowed", fileExt)
		}
	}

	filename := s.generateFileName(header.Filename, options.Folder)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return s.uploadToS3(fileBytes, filename, header.Header.Get("Content-Type"), options.IsPublic)
}

func (s *StorageService) uploadToS3(fileBytes []byte, key, contentType string, isPublic bool) (*UploadResult, error) {
	checksum := utils.HashBytes(fileBytes)
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
		Metadata:      map[string]*string{"sha256": aws.String(checksum)},
	}

	if isPublic {
		params.ACL = aws.String("public-read")
	}

	if _, err := s.s3Client.PutObject(params); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	s.log.WithFields(logrus.Fields{"key": key, "size": len(fileBytes)}).Info("object uploaded")

	return &UploadResult{
		Reference: fmt.Sprintf("s3://%s/%s", s.config.AWS.S3Bucket, key),
		URL:       s.getS3URL(key),
		Key:       key,
		Size:      int64(len(fileBytes)),
		MimeType:  contentType,
		Checksum:  checksum,
	}, nil
}

// PresignObject returns a time-limited GET URL. It satisfies ContentPresigner.
func (s *StorageService) PresignObject(bucket, key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "", ErrStorageNotConfigured
	}
	if bucket == "" {
		bucket = s.config.AWS.S3Bucket
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}

func (s *StorageService) GetDefaultUploadOptions(category string) UploadOptions {
	switch category {
	case "covers":
		return UploadOptions{
			Folder:       "covers",
			MaxSize:      5 * 1024 * 1024, // 5MB
			AllowedTypes: []string{".jpg", ".jpeg", ".png", ".gif"},
			IsPublic:     true,
		}
	default:
		return UploadOptions{
			Folder:       "general",
			MaxSize:      5 * 1024 * 1024, // 5MB
			AllowedTypes: []string{".jpg", ".jpeg", ".png"},
			IsPublic:     false,
		}
	}
}

func (s *StorageService) generateFileName(originalName, folder string) string {
	id := uuid.New()
	ext := strings.ToLower(filepath.Ext(originalName))

	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, id.String()[:8], ext)

	if folder != "" {
		return fmt.Sprintf("%s/%s", folder, filename)
	}

	return filename
}

func (s *StorageService) getS3URL(key string) string {
	if s.config.AWS.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.config.AWS.CloudFrontURL, key)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.AWS.S3Bucket, s.config.AWS.Region, key)
}

func (s *StorageService) ValidateImage(file io.ReadSeeker) error {
	// Read first few bytes to check file signature
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}

	if !isValidImageType(buffer[:n]) {
		return ErrInvalidImage
	}

	return nil
}

func isValidImageType(buffer []byte) bool {
	// JPEG
	if len(buffer) >= 3 && buffer[0] == 0xFF && buffer[1] == 0xD8 && buffer[2] == 0xFF {
		return true
	}

	// PNG
	if len(buffer) >= 8 && buffer[0] == 0x89 && buffer[1] == 0x50 && buffer[2] == 0x4E && buffer[3] == 0x47 {
		return true
	}

	// GIF
	if len(buffer) >= 6 && (string(buffer[0:6]) == "GIF87a" || string(buffer[0:6]) == "GIF89a") {
		return true
	}

	return false
}
