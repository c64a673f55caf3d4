package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Fragment is one spoken-output transcript line with its arrival time.
type Fragment struct {
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// TranscriptInfo summarizes one stored session transcript.
type TranscriptInfo struct {
	UID       string `json:"uid"`
	Fragments int    `json:"fragments"`
	Timestamp string `json:"timestamp"`
}

var safeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]+$`)

// SaveTranscript writes the fragments of a finished live session and returns
// the transcript UID.
func SaveTranscript(baseDir string, clientUID string, fragments []Fragment) (string, error) {
	if len(fragments) == 0 {
		return "", errors.New("transcript is empty")
	}
	dir, err := ensureClientDir(baseDir, clientUID)
	if err != nil {
		return "", err
	}
	uid := time.Now().Format("2006-01-02_15-04-05") + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	path := filepath.Join(dir, uid+".json")
	if err := writeTranscript(path, fragments); err != nil {
		return "", err
	}
	return uid, nil
}

// GetTranscript loads one stored transcript.
func GetTranscript(baseDir string, clientUID string, transcriptUID string) ([]Fragment, error) {
	path, err := transcriptPath(baseDir, clientUID, transcriptUID)
	if err != nil {
		return nil, err
	}
	return readTranscript(path)
}

// DeleteTranscript removes one stored transcript. It reports success.
func DeleteTranscript(baseDir string, clientUID string, transcriptUID string) bool {
	path, err := transcriptPath(baseDir, clientUID, transcriptUID)
	if err != nil {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return os.Remove(path) == nil
}

// ListTranscripts returns stored transcripts for a client, newest first.
func ListTranscripts(baseDir string, clientUID string) []TranscriptInfo {
	list := []TranscriptInfo{}
	dir, err := ensureClientDir(baseDir, clientUID)
	if err != nil {
		return list
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return list
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		fragments, err := readTranscript(filepath.Join(dir, entry.Name()))
		if err != nil || len(fragments) == 0 {
			continue
		}
		last := fragments[len(fragments)-1]
		list = append(list, TranscriptInfo{
			UID:       strings.TrimSuffix(entry.Name(), ".json"),
			Fragments: len(fragments),
			Timestamp: last.Timestamp,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp > list[j].Timestamp
	})
	return list
}

func ensureClientDir(baseDir string, clientUID string) (string, error) {
	if baseDir == "" {
		return "", errors.New("transcript base dir is empty")
	}
	if !safeNamePattern.MatchString(clientUID) {
		return "", errors.New("invalid client uid")
	}
	path := filepath.Join(baseDir, clientUID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func transcriptPath(baseDir string, clientUID string, transcriptUID string) (string, error) {
	if baseDir == "" {
		return "", errors.New("transcript base dir is empty")
	}
	if !safeNamePattern.MatchString(clientUID) || !safeNamePattern.MatchString(transcriptUID) {
		return "", errors.New("invalid transcript path")
	}
	return filepath.Join(baseDir, clientUID, transcriptUID+".json"), nil
}

func readTranscript(path string) ([]Fragment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fragments []Fragment
	if err := json.Unmarshal(data, &fragments); err != nil {
		return nil, err
	}
	return fragments, nil
}

func writeTranscript(path string, fragments []Fragment) error {
	data, err := json.MarshalIndent(fragments, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
