package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/groverq/internal/agent"
	"github.com/aristath/groverq/internal/runs"
)

const (
	archivePrefix   = "run-"
	archiveSuffix   = ".tar.gz"
	timestampLayout = "2006-01-02-150405"
	formatVersion   = "1"

	metadataFile  = "metadata.json"
	historyFile   = "history.msgpack"
	artifactsFile = "artifacts.msgpack"
)

// ErrChecksumMismatch is returned when an archived file does not match its
// recorded checksum.
var ErrChecksumMismatch = errors.New("archive checksum mismatch")

// ArchiveMetadata is stored as metadata.json in every run archive
type ArchiveMetadata struct {
	Version    string         `json:"version"`
	ArchivedAt time.Time      `json:"archived_at"`
	Run        *runs.Run      `json:"run"`
	Files      []FileMetadata `json:"files"`
}

// FileMetadata describes one payload file in the archive
type FileMetadata struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// ArchiveInfo represents a run archive stored in the bucket
type ArchiveInfo struct {
	Key       string    `json:"key"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// ArchiveContents is an unpacked and verified run archive
type ArchiveContents struct {
	Metadata  ArchiveMetadata
	History   *agent.History
	Artifacts *runs.Artifacts
}

// RunArchiver packs completed runs into tar.gz archives and uploads them
type RunArchiver struct {
	store ObjectStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewRunArchiver creates an archiver writing to store
func NewRunArchiver(store ObjectStore, log zerolog.Logger) *RunArchiver {
	return &RunArchiver{
		store: store,
		log:   log.With().Str("service", "run_archiver").Logger(),
		now:   time.Now,
	}
}

// ArchiveKey returns the object key of a run archived at t
func ArchiveKey(runID string, t time.Time) string {
	return archivePrefix + t.UTC().Format(timestampLayout) + "-" + runID + archiveSuffix
}

// ParseArchiveKey is the inverse of ArchiveKey
func ParseArchiveKey(key string) (string, time.Time, error) {
	if !strings.HasPrefix(key, archivePrefix) || !strings.HasSuffix(key, archiveSuffix) {
		return "", time.Time{}, fmt.Errorf("not a run archive: %s", key)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(key, archivePrefix), archiveSuffix)
	if len(body) < len(timestampLayout)+2 || body[len(timestampLayout)] != '-' {
		return "", time.Time{}, fmt.Errorf("malformed run archive key: %s", key)
	}

	timestamp, err := time.Parse(timestampLayout, body[:len(timestampLayout)])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to parse timestamp of %s: %w", key, err)
	}
	return body[len(timestampLayout)+1:], timestamp, nil
}

// Archive uploads run with its history and artifacts. It implements runs.Archiver.
func (a *RunArchiver) Archive(ctx context.Context, run *runs.Run, history *agent.History, artifacts *runs.Artifacts) error {
	startTime := time.Now()
	archivedAt := a.now().UTC()

	var buf bytes.Buffer
	if err := PackRun(&buf, run, history, artifacts, archivedAt); err != nil {
		return fmt.Errorf("failed to pack run %s: %w", run.ID, err)
	}

	key := ArchiveKey(run.ID, archivedAt)
	size := int64(buf.Len())
	if err := a.store.Upload(ctx, key, &buf, size); err != nil {
		return fmt.Errorf("failed to upload run %s: %w", run.ID, err)
	}

	a.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("run_id", run.ID).
		Str("archive", key).
		Int64("size_bytes", size).
		Msg("Run archived")
	return nil
}

// Fetch downloads and unpacks an archive
func (a *RunArchiver) Fetch(ctx context.Context, key string) (*ArchiveContents, error) {
	body, err := a.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return UnpackRun(body)
}

// ListArchives lists run archives, newest first
func (a *RunArchiver) ListArchives(ctx context.Context) ([]ArchiveInfo, error) {
	objects, err := a.store.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list run archives: %w", err)
	}

	archives := make([]ArchiveInfo, 0, len(objects))
	now := a.now()
	for _, obj := range objects {
		runID, timestamp, err := ParseArchiveKey(obj.Key)
		if err != nil {
			a.log.Warn().Str("key", obj.Key).Msg("Skipping object that is not a run archive")
			continue
		}
		archives = append(archives, ArchiveInfo{
			Key:       obj.Key,
			RunID:     runID,
			Timestamp: timestamp,
			SizeBytes: obj.SizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Timestamp.After(archives[j].Timestamp)
	})
	return archives, nil
}

// RotateOldArchives deletes archives older than retentionDays, always
// keeping the newest keep archives. A retention of 0 keeps everything.
// It returns the number of deleted archives.
func (a *RunArchiver) RotateOldArchives(ctx context.Context, retentionDays, keep int) (int, error) {
	archives, err := a.ListArchives(ctx)
	if err != nil {
		return 0, err
	}
	if retentionDays <= 0 || len(archives) <= keep {
		a.log.Debug().Int("count", len(archives)).Msg("No run archives to rotate")
		return 0, nil
	}

	cutoff := a.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, archive := range archives {
		if i < keep || !archive.Timestamp.Before(cutoff) {
			continue
		}
		if err := a.store.Delete(ctx, archive.Key); err != nil {
			a.log.Error().Err(err).Str("key", archive.Key).Msg("Failed to delete old run archive")
			continue
		}
		deleted++
	}

	a.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Run archive rotation completed")
	return deleted, nil
}

// PackRun writes a tar.gz archive of run, history and artifacts to w
func PackRun(w io.Writer, run *runs.Run, history *agent.History, artifacts *runs.Artifacts, archivedAt time.Time) error {
	historyData, err := msgpack.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	artifactsData, err := runs.EncodeArtifacts(artifacts)
	if err != nil {
		return fmt.Errorf("failed to encode artifacts: %w", err)
	}

	payloads := []struct {
		name string
		data []byte
	}{
		{historyFile, historyData},
		{artifactsFile, artifactsData},
	}

	metadata := ArchiveMetadata{
		Version:    formatVersion,
		ArchivedAt: archivedAt.UTC(),
		Run:        run,
		Files:      make([]FileMetadata, 0, len(payloads)),
	}
	for _, p := range payloads {
		metadata.Files = append(metadata.Files, FileMetadata{
			Name:      p.name,
			SizeBytes: int64(len(p.data)),
			Checksum:  checksum(p.data),
		})
	}
	metadataData, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	gzipWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzipWriter)

	if err := addToArchive(tarWriter, metadataFile, metadataData, archivedAt); err != nil {
		return err
	}
	for _, p := range payloads {
		if err := addToArchive(tarWriter, p.name, p.data, archivedAt); err != nil {
			return err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

// UnpackRun reads an archive written by PackRun and verifies the checksums
func UnpackRun(r io.Reader) (*ArchiveContents, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzipReader.Close()

	files := map[string][]byte{}
	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		data, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		files[header.Name] = data
	}

	metadataData, ok := files[metadataFile]
	if !ok {
		return nil, fmt.Errorf("archive has no %s", metadataFile)
	}
	contents := &ArchiveContents{}
	if err := json.Unmarshal(metadataData, &contents.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	for _, f := range contents.Metadata.Files {
		data, ok := files[f.Name]
		if !ok {
			return nil, fmt.Errorf("archive is missing %s", f.Name)
		}
		if checksum(data) != f.Checksum {
			return nil, fmt.Errorf("%s: %w", f.Name, ErrChecksumMismatch)
		}
	}

	contents.History = &agent.History{}
	if err := msgpack.Unmarshal(files[historyFile], contents.History); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	contents.Artifacts, err = runs.DecodeArtifacts(files[artifactsFile])
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifacts: %w", err)
	}
	return contents, nil
}

func addToArchive(tarWriter *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Size:    int64(len(data)),
		Mode:    0644,
		ModTime: modTime,
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := tarWriter.Write(data); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", name, err)
	}
	return nil
}

func checksum(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}
