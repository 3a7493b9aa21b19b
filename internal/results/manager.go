// Package results keeps a record of every translation job, keyed by the
// MD5 of the source file, so finished work can be listed and found again.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Status represents the state of a job
type Status string

const (
	// StatusRunning indicates the job has started
	StatusRunning Status = "running"
	// StatusComplete indicates every requested output was written
	StatusComplete Status = "complete"
	// StatusStopped indicates the job was cancelled; outputs may be partial
	StatusStopped Status = "stopped"
	// StatusError indicates the job failed
	StatusError Status = "error"
)

const recordFile = "record.json"

// JobRecord describes one processed source file
type JobRecord struct {
	ID             string            `json:"id"`
	SourcePath     string            `json:"source_path"`
	SourceFileName string            `json:"source_file_name"`
	SourceType     string            `json:"source_type,omitempty"`
	SourceMD5      string            `json:"source_md5"`
	Title          string            `json:"title,omitempty"`
	Mode           string            `json:"mode"`
	Targets        []string          `json:"targets"`
	Outputs        map[string]string `json:"outputs,omitempty"` // target language -> output path
	Elements       int               `json:"elements"`
	Translated     int               `json:"translated"`
	Missing        int               `json:"missing"`
	Status         Status            `json:"status"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Manager stores job records below a base directory, one directory per
// source file
type Manager struct {
	baseDir string
}

// NewManager creates a Manager. An empty baseDir uses
// ~/translate-tool-results.
func NewManager(baseDir string) (*Manager, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		baseDir = filepath.Join(homeDir, "translate-tool-results")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the base directory for records
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// RecordDir returns the directory of a record
func (m *Manager) RecordDir(id string) string {
	return filepath.Join(m.baseDir, filepath.Base(id))
}

// Save writes rec, stamping UpdatedAt
func (m *Manager) Save(rec *JobRecord) error {
	dir := m.RecordDir(rec.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	rec.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, recordFile), data, 0644)
}

// Load reads the record with the given id
func (m *Manager) Load(id string) (*JobRecord, error) {
	data, err := os.ReadFile(filepath.Join(m.RecordDir(id), recordFile))
	if err != nil {
		return nil, err
	}
	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns all records, most recently updated first
func (m *Manager) List() ([]*JobRecord, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*JobRecord{}, nil
		}
		return nil, err
	}

	var recs []*JobRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := m.Load(entry.Name())
		if err != nil {
			continue // Skip directories without a record
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
	})
	return recs, nil
}

// Delete removes a record
func (m *Manager) Delete(id string) error {
	return os.RemoveAll(m.RecordDir(id))
}

// Exists checks if a record with the given id exists
func (m *Manager) Exists(id string) bool {
	_, err := os.Stat(filepath.Join(m.RecordDir(id), recordFile))
	return err == nil
}

// UpdateStatus updates the status of a record
func (m *Manager) UpdateStatus(id string, status Status, errorMsg string) error {
	rec, err := m.Load(id)
	if err != nil {
		return err
	}
	rec.Status = status
	rec.ErrorMessage = errorMsg
	return m.Save(rec)
}

// Incomplete returns records that did not complete
func (m *Manager) Incomplete() ([]*JobRecord, error) {
	recs, err := m.List()
	if err != nil {
		return nil, err
	}
	var out []*JobRecord
	for _, rec := range recs {
		if rec.Status != StatusComplete {
			out = append(out, rec)
		}
	}
	return out, nil
}

// FindByMD5 returns the record of a source file by its hash, or nil
func (m *Manager) FindByMD5(md5Hash string) (*JobRecord, error) {
	if md5Hash == "" || !m.Exists(md5Hash) {
		return nil, nil
	}
	return m.Load(md5Hash)
}

// NewRecord starts a record for a source file
func NewRecord(sourcePath string) (*JobRecord, error) {
	sum, err := CalculateFileMD5(sourcePath)
	if err != nil {
		return nil, err
	}
	return &JobRecord{
		ID:             sum,
		SourcePath:     sourcePath,
		SourceFileName: filepath.Base(sourcePath),
		SourceMD5:      sum,
		Outputs:        make(map[string]string),
		Status:         StatusRunning,
	}, nil
}

// CalculateFileMD5 calculates the MD5 hash of a file
func CalculateFileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
