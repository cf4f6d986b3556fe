package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/halkadev/halka/pkg"
)

// StoredObject, object store'a yazılmış tek bir nesneyi tanımlar.
// Key kalıcıdır ve URL key'den deterministik türetilir — aynı key
// her zaman aynı URL'i verir.
type StoredObject struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// UploadService, ikili içerik (avatar, mesaj eki) yükleme interface'i.
// Depolama şekli soyutlanır: bu implementasyon diske yazar, URL'i
// static file route'u servis eder.
type UploadService interface {
	Upload(file multipart.File, header *multipart.FileHeader) (*StoredObject, error)
}

type uploadService struct {
	uploadDir string
	maxSize   int64
}

// NewUploadService, constructor. uploadDir yoksa oluşturulur.
func NewUploadService(uploadDir string, maxSize int64) (UploadService, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &uploadService{uploadDir: uploadDir, maxSize: maxSize}, nil
}

// allowedMimeTypes, yüklemeye izin verilen dosya türleri.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"video/mp4":  true,
	"video/webm": true,
	"audio/mpeg": true,
	"audio/ogg":  true,
}

// Upload, dosyayı doğrular ve benzersiz bir key altında kaydeder.
func (s *uploadService) Upload(file multipart.File, header *multipart.FileHeader) (*StoredObject, error) {
	if header.Size > s.maxSize {
		return nil, fmt.Errorf("%w: file too large (max %dMB)", pkg.ErrBadRequest, s.maxSize/(1024*1024))
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	// Sadece base MIME type'ı al (charset vb. parametre olabilir)
	mimeBase := strings.TrimSpace(strings.Split(contentType, ";")[0])

	if !allowedMimeTypes[mimeBase] {
		return nil, fmt.Errorf("%w: file type not allowed: %s", pkg.ErrBadRequest, mimeBase)
	}

	// Key: {random_hex}_{original_filename} — çakışma ve güvenlik için
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate object key: %w", err)
	}
	key := hex.EncodeToString(randomBytes) + "_" + sanitizeFilename(header.Filename)

	destPath := filepath.Join(s.uploadDir, key)
	destFile, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, file); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &StoredObject{
		Key:      key,
		URL:      "/api/uploads/" + key,
		Size:     header.Size,
		MimeType: mimeBase,
	}, nil
}

// sanitizeFilename, dosya adını güvenli hale getirir.
// Path traversal saldırılarını önler (../../etc/passwd gibi).
func sanitizeFilename(name string) string {
	name = filepath.Base(name)

	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '\x00' {
			return -1
		}
		return r
	}, name)

	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}

	return name
}
