// Package reliability provides database backups to S3-compatible storage.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// BackupPrefix starts every backup object key
	BackupPrefix = "conta-azul-backup-"

	backupSuffix      = ".tar.gz"
	timestampLayout   = "2006-01-02-150405"
	metadataFilename  = "backup-metadata.json"
	metadataVersion   = "1.0.0"
	minBackupsToKeep  = 3
	stagingDirName    = "backup-staging"
	databaseInArchive = "conta_azul.db"
)

// Snapshotter writes a consistent copy of the database, see database.DB.BackupTo.
type Snapshotter interface {
	BackupTo(ctx context.Context, destPath string) error
	Name() string
}

// BackupService creates database backups and uploads them
type BackupService struct {
	db            Snapshotter
	store         ObjectStore
	dataDir       string
	retentionDays int
	now           func() time.Time
	log           zerolog.Logger
}

// BackupMetadata is stored next to the database inside the archive
type BackupMetadata struct {
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Database  DatabaseMetadata `json:"database"`
}

// DatabaseMetadata describes the database file in the archive
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupInfo represents a backup stored in the bucket
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// NewBackupService creates a backup service. dataDir holds the temporary
// staging directory; retentionDays of 0 keeps every backup.
func NewBackupService(
	db Snapshotter,
	store ObjectStore,
	dataDir string,
	retentionDays int,
	log zerolog.Logger,
) *BackupService {
	return &BackupService{
		db:            db,
		store:         store,
		dataDir:       dataDir,
		retentionDays: retentionDays,
		now:           time.Now,
		log:           log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup snapshots the database, uploads the archive and
// rotates old backups. Rotation failures are logged only.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	key, err := s.CreateAndUpload(ctx)
	if err != nil {
		return err
	}

	if err := s.RotateOldBackups(ctx); err != nil {
		s.log.Error().Err(err).Str("archive", key).Msg("Backup rotation failed")
	}
	return nil
}

// CreateAndUpload creates a backup archive and uploads it. Returns the object key.
func (s *BackupService) CreateAndUpload(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	stagingDir := filepath.Join(s.dataDir, stagingDirName)
	if err := os.RemoveAll(stagingDir); err != nil {
		return "", fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	dbPath := filepath.Join(stagingDir, databaseInArchive)
	if err := s.db.BackupTo(ctx, dbPath); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat database snapshot: %w", err)
	}

	checksum, err := calculateChecksum(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	now := s.now().UTC()
	metadata := BackupMetadata{
		Timestamp: now,
		Version:   metadataVersion,
		Database: DatabaseMetadata{
			Name:      s.db.Name(),
			Filename:  databaseInArchive,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		},
	}

	metadataPath := filepath.Join(stagingDir, metadataFilename)
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := BackupKey(now)
	archivePath := filepath.Join(stagingDir, archiveName)
	if err := createArchive(archivePath, stagingDir, []string{databaseInArchive, metadataFilename}); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	if err := s.store.Upload(ctx, archiveName, archiveFile, archiveInfo.Size()); err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed")

	return archiveName, nil
}

// BackupKey returns the object key of a backup taken at t.
func BackupKey(t time.Time) string {
	return BackupPrefix + t.UTC().Format(timestampLayout) + backupSuffix
}

// ListBackups lists stored backups, newest first. Objects whose key does not
// follow the backup naming are ignored.
func (s *BackupService) ListBackups(ctx context.Context) ([]BackupInfo, error) {
	objects, err := s.store.List(ctx, BackupPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	backups := make([]BackupInfo, 0, len(objects))
	now := s.now()

	for _, obj := range objects {
		if !strings.HasPrefix(obj.Key, BackupPrefix) || !strings.HasSuffix(obj.Key, backupSuffix) {
			continue
		}

		stamp := strings.TrimSuffix(strings.TrimPrefix(obj.Key, BackupPrefix), backupSuffix)
		timestamp, err := time.Parse(timestampLayout, stamp)
		if err != nil {
			s.log.Warn().Str("filename", obj.Key).Msg("Failed to parse timestamp from filename")
			continue
		}

		backups = append(backups, BackupInfo{
			Filename:  obj.Key,
			Timestamp: timestamp,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

// RotateOldBackups deletes backups older than the retention period.
// The newest three are always kept.
func (s *BackupService) RotateOldBackups(ctx context.Context) error {
	s.log.Debug().Int("retention_days", s.retentionDays).Msg("Starting backup rotation")

	backups, err := s.ListBackups(ctx)
	if err != nil {
		return err
	}

	if len(backups) <= minBackupsToKeep || s.retentionDays <= 0 {
		return nil
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)

	deleted := 0
	var failed []string
	for _, backup := range backups[minBackupsToKeep:] {
		if !backup.Timestamp.Before(cutoff) {
			continue
		}

		if err := s.store.Delete(ctx, backup.Filename); err != nil {
			s.log.Error().Err(err).Str("filename", backup.Filename).Msg("Failed to delete old backup")
			failed = append(failed, backup.Filename)
			continue
		}

		s.log.Info().
			Str("filename", backup.Filename).
			Time("timestamp", backup.Timestamp).
			Msg("Deleted old backup")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(backups)-deleted).
		Msg("Backup rotation completed")

	if len(failed) > 0 {
		return fmt.Errorf("failed to delete %d backups: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}

func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive writes the named files of sourceDir into a tar.gz archive.
func createArchive(archivePath, sourceDir string, filenames []string) (err error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer func() {
		if cerr := archiveFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	gzipWriter := gzip.NewWriter(archiveFile)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, filename := range filenames {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	// Both writers flush on Close; their errors mean a truncated archive
	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
