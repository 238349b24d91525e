package photos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dossier/internal/archive"
	"dossier/internal/config"
	"dossier/internal/logging"
	"dossier/internal/services"
)

// Service manages temporal photo versions. Uploaded media is copied under the
// data directory and every version is kept; only the active one changes.
type Service struct {
	store  *archive.Store
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a photo Service storing media below the data
// directory.
func NewService(store *archive.Store, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		root:   filepath.Join(cfg.Paths.DataDir, "photos"),
		logger: logging.NewComponentLogger(logger, "photos"),
		now:    time.Now,
	}
}

// Upload stores a new photo version for the entity (following merge
// redirects). When year is zero it is taken from the image's EXIF capture
// date, falling back to the current year. The new version becomes active
// when its year is greater than or equal to the current active version's.
func (s *Service) Upload(ctx context.Context, entityRef int64, sourcePath string, year int) (*archive.PhotoVersion, error) {
	entity, err := s.store.ResolveEntity(ctx, entityRef)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, services.Wrap(services.ErrValidation, "photos", "upload",
			fmt.Sprintf("entity %d not found", entityRef), nil)
	}

	if year == 0 {
		if captured, ok := CaptureYear(sourcePath); ok {
			year = captured
		} else {
			year = s.now().Year()
		}
	}

	mediaRef, err := s.copyMedia(entity.ID, sourcePath)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "photos", "upload", "copy media", err)
	}

	var version *archive.PhotoVersion
	err = s.store.InTx(ctx, func(tx *archive.Tx) error {
		var err error
		version, err = tx.InsertPhotoVersion(ctx, entity.ID, mediaRef, year)
		if err != nil {
			return err
		}
		active, err := tx.ActivePhotoVersion(ctx, entity.ID)
		if err != nil {
			return err
		}
		if active == nil || year >= active.Year {
			return tx.PromotePhotoVersion(ctx, version)
		}
		return nil
	})
	if err != nil {
		// The copied file without a row is orphaned; remove it.
		if removeErr := os.Remove(filepath.Join(s.root, mediaRef)); removeErr != nil && !os.IsNotExist(removeErr) {
			s.logger.Warn("orphaned media cleanup failed", logging.Error(removeErr))
		}
		return nil, err
	}

	s.logger.Info("photo version stored",
		logging.Int64("entity", entity.ID),
		logging.Int64("version", version.ID),
		logging.Int("year", year),
		logging.Bool("active", version.IsActive))
	return version, nil
}

// Versions lists an entity's photo versions, newest year first.
func (s *Service) Versions(ctx context.Context, entityRef int64) ([]*archive.PhotoVersion, error) {
	entity, err := s.store.ResolveEntity(ctx, entityRef)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, services.Wrap(services.ErrValidation, "photos", "versions",
			fmt.Sprintf("entity %d not found", entityRef), nil)
	}
	return s.store.PhotoVersionsByEntity(ctx, entity.ID)
}

// MediaPath resolves a stored media reference to an absolute path.
func (s *Service) MediaPath(mediaRef string) string {
	return filepath.Join(s.root, mediaRef)
}

// copyMedia copies the source image below the photo root and returns the
// relative media reference stored in the archive.
func (s *Service) copyMedia(entityID int64, sourcePath string) (string, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(sourcePath))
	if ext == "" {
		ext = ".jpg"
	}
	mediaRef := filepath.Join(fmt.Sprintf("entity-%d", entityID), uuid.NewString()+ext)
	target := filepath.Join(s.root, mediaRef)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	dst, err := os.Create(target)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(target)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(target)
		return "", err
	}
	return mediaRef, nil
}
