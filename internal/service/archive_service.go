package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-teacher-panel/internal/dto"
	"github.com/noah-isme/gema-teacher-panel/internal/observability"
	"github.com/noah-isme/gema-teacher-panel/internal/repository"
	"github.com/noah-isme/gema-teacher-panel/internal/schema"
)

var (
	// ErrArchiveMissing indicates the request carried no archive file.
	ErrArchiveMissing = errors.New("archive file is required")
	// ErrArchiveTooLarge indicates the payload exceeded the configured limit.
	ErrArchiveTooLarge = errors.New("archive exceeds maximum allowed size")
	// ErrArchiveType indicates the payload is not a zip archive.
	ErrArchiveType = errors.New("archive must be a zip file")
	// ErrArchiveInvalid indicates the archive failed extraction checks.
	ErrArchiveInvalid = errors.New("archive failed validation")
)

// expansionLimit caps total uncompressed size as a multiple of the upload limit.
const expansionLimit = 20

// FileStorage abstracts archive destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ArchiveService validates and stores hidden test-case archives for tests.
type ArchiveService interface {
	Store(ctx context.Context, actor ActivityActor, testID uint, file *multipart.FileHeader) (dto.ArchiveResponse, error)
}

type archiveService struct {
	tests        repository.TestRepository
	capabilities CapabilityService
	storage      FileStorage
	activity     ActivityRecorder
	maxSize      int64
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewArchiveService constructs the archive service. A nil storage makes Store
// report ErrFeatureUnavailable.
func NewArchiveService(tests repository.TestRepository, capabilities CapabilityService, storage FileStorage, activity ActivityRecorder, maxBytes int64, logger zerolog.Logger) ArchiveService {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &archiveService{
		tests:        tests,
		capabilities: capabilities,
		storage:      storage,
		activity:     activity,
		maxSize:      maxBytes,
		logger:       logger.With().Str("component", "archive_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-teacher-panel/internal/service/archive"),
	}
}

func (s *archiveService) Store(ctx context.Context, actor ActivityActor, testID uint, file *multipart.FileHeader) (dto.ArchiveResponse, error) {
	ctx, span := s.tracer.Start(ctx, "archive.store")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("archive.test_id", int64(testID)),
		attribute.Int64("archive.max_bytes", s.maxSize),
	)

	start := time.Now()
	defer func() {
		observability.ArchiveLatency().Observe(time.Since(start).Seconds())
	}()

	if s.storage == nil {
		err := fmt.Errorf("%w: archive storage is not configured", ErrFeatureUnavailable)
		failSpan(span, err, "storage_unconfigured")
		return dto.ArchiveResponse{}, err
	}
	if file == nil {
		failSpan(span, ErrArchiveMissing, "validation failed")
		return dto.ArchiveResponse{}, ErrArchiveMissing
	}

	caps := s.capabilities.Resolve(ctx, schema.Join(schema.TestFields(), schema.SectionFields())...)
	if !caps.HasTable(schema.TableTests) {
		err := featureError(repository.ErrCapabilityMissing)
		failSpan(span, err, "tests_table_missing")
		return dto.ArchiveResponse{}, err
	}
	if _, err := s.tests.GetOwned(ctx, actor.ID, caps, testID); err != nil {
		failSpan(span, err, "test_not_owned")
		if isNotFound(err) {
			return dto.ArchiveResponse{}, ErrNotOwned
		}
		return dto.ArchiveResponse{}, featureError(err)
	}

	if file.Size > s.maxSize {
		return dto.ArchiveResponse{}, s.reject(span, "size", ErrArchiveTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		failSpan(span, err, "open failed")
		return dto.ArchiveResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		failSpan(span, err, "read failed")
		return dto.ArchiveResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.ArchiveResponse{}, s.reject(span, "size", ErrArchiveTooLarge)
	}

	detected := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("archive.detected_mime", detected.String()))
	if !detected.Is("application/zip") {
		return dto.ArchiveResponse{}, s.reject(span, "type", ErrArchiveType)
	}

	entries, err := s.inspect(buf.Bytes())
	if err != nil {
		return dto.ArchiveResponse{}, s.reject(span, "scan", err)
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := fmt.Sprintf("test-%d-%s", testID, sanitizeFileName(file.Filename))
	span.SetAttributes(
		attribute.String("archive.name", name),
		attribute.Int("archive.entries", entries),
		attribute.Int64("archive.size_bytes", int64(buf.Len())),
	)

	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		s.logger.Error().Err(err).Uint("test_id", testID).Msg("failed to store archive")
		return dto.ArchiveResponse{}, s.reject(span, "storage", err)
	}

	persisted := false
	if caps.Has(schema.TestArchive) {
		affected, err := s.tests.SetArchive(ctx, actor.ID, caps, testID, url)
		if err != nil {
			failSpan(span, err, "persist failed")
			return dto.ArchiveResponse{}, featureError(err)
		}
		persisted = affected > 0
	}

	response := dto.ArchiveResponse{
		TestID:    testID,
		URL:       url,
		FileName:  name,
		SizeBytes: int64(buf.Len()),
		Entries:   entries,
		Checksum:  hex.EncodeToString(checksum[:]),
		Persisted: persisted,
	}
	record(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "test.archive_uploaded",
		EntityType: "test",
		EntityID:   &testID,
		Metadata: map[string]interface{}{
			"file_name": name,
			"entries":   entries,
			"checksum":  response.Checksum,
			"persisted": persisted,
		},
	})
	span.SetStatus(codes.Ok, "stored")
	return response, nil
}

// inspect performs the extraction checks without writing to disk: the archive must
// open, hold at least one file, keep every entry inside the archive root and stay
// under the expansion limit. It returns the number of files.
func (s *archiveService) inspect(payload []byte) (int, error) {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrArchiveInvalid, err)
	}

	var total uint64
	files := 0
	for _, f := range reader.File {
		if !safeEntryName(f.Name) {
			return 0, fmt.Errorf("%w: unsafe entry %q", ErrArchiveInvalid, f.Name)
		}
		total += f.UncompressedSize64
		if total > uint64(s.maxSize*expansionLimit) {
			return 0, fmt.Errorf("%w: uncompressed size too large", ErrArchiveInvalid)
		}
		if !f.FileInfo().IsDir() {
			files++
		}
	}
	if files == 0 {
		return 0, fmt.Errorf("%w: archive is empty", ErrArchiveInvalid)
	}
	return files, nil
}

func (s *archiveService) reject(span trace.Span, reason string, err error) error {
	observability.ArchiveRejected().WithLabelValues(reason).Inc()
	failSpan(span, err, "archive rejected: "+reason)
	return err
}

func safeEntryName(name string) bool {
	if name == "" || strings.Contains(name, "\\") || strings.HasPrefix(name, "/") {
		return false
	}
	cleaned := path.Clean(name)
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "cases"
	}
	return base + ".zip"
}
