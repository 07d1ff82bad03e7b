// Package lifecycle implements the pickup workflow: report submission, assignment,
// acceptance, photo verification, citizen confirmation and settlement of rewards.
package lifecycle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"path"
	"time"

	"ewaste-backend/internal/apperr"
	"ewaste-backend/internal/ledger"
	"ewaste-backend/internal/matching"
	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
)

// Classifier inspects a photo for e-waste.
type Classifier interface {
	Classify(ctx context.Context, image []byte, contentType string) (*models.Classification, error)
}

// ImageStore persists uploaded photos and returns a URL for them.
type ImageStore interface {
	Upload(ctx context.Context, objectPath, contentType string, data []byte) (string, error)
}

// Geocoder resolves a free-form address.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*models.Coordinates, error)
}

// Image is an uploaded photo.
type Image struct {
	Data        []byte
	ContentType string
}

// Hash is the hex SHA-256 of the image content. Byte-identical uploads share a hash.
func (img Image) Hash() string {
	sum := sha256.Sum256(img.Data)
	return hex.EncodeToString(sum[:])
}

type Config struct {
	Rewards            ledger.Rewards
	Ranks              ledger.RankPolicy
	Quota              int
	ConfirmationWindow time.Duration
	MinConfidence      float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Rewards:            ledger.DefaultRewards,
		Ranks:              ledger.DefaultRankPolicy,
		Quota:              matching.DefaultQuota,
		ConfirmationWindow: 24 * time.Hour,
		MinConfidence:      0.7,
	}
}

type Service struct {
	store      store.Store
	classifier Classifier
	images     ImageStore
	geocoder   Geocoder
	cfg        Config
	now        func() time.Time
}

func NewService(s store.Store, classifier Classifier, images ImageStore, geocoder Geocoder, cfg Config) *Service {
	if cfg.Quota <= 0 {
		cfg.Quota = matching.DefaultQuota
	}
	if cfg.ConfirmationWindow <= 0 {
		cfg.ConfirmationWindow = 24 * time.Hour
	}
	return &Service{
		store:      s,
		classifier: classifier,
		images:     images,
		geocoder:   geocoder,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Config returns the settings the service runs with.
func (s *Service) Config() Config {
	return s.cfg
}

// screenImage rejects an image whose content was already submitted or that the
// classifier does not accept. Both checks run before anything is uploaded.
func (s *Service) screenImage(ctx context.Context, img Image) (*models.Classification, error) {
	if len(img.Data) == 0 {
		return nil, apperr.Validation("image is required")
	}

	exists, err := s.store.ImageHashExists(ctx, img.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to check image hash: %w", err)
	}
	if exists {
		return nil, apperr.ErrDuplicateImage
	}

	if s.classifier == nil {
		return nil, apperr.Upstream("classifier", fmt.Errorf("not configured"))
	}
	result, err := s.classifier.Classify(ctx, img.Data, img.ContentType)
	if err != nil {
		return nil, apperr.Upstream("classifier", err)
	}
	if !result.Accepted(s.cfg.MinConfidence) {
		log.Printf("⚠️  Image rejected by classifier (containsWaste=%v, confidence=%.2f)", result.ContainsWaste, result.Confidence)
		return nil, apperr.ErrVerificationFailed
	}
	return result, nil
}

func (s *Service) upload(ctx context.Context, folder string, img Image) (string, error) {
	if s.images == nil {
		return "", apperr.Upstream("storage", fmt.Errorf("not configured"))
	}
	objectPath := path.Join(folder, img.Hash()+extensionFor(img.ContentType))
	url, err := s.images.Upload(ctx, objectPath, img.ContentType, img.Data)
	if err != nil {
		return "", apperr.Upstream("storage", err)
	}
	return url, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	default:
		return ".jpg"
	}
}
