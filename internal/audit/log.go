// Package audit records every tool decision — renders, syntax checks,
// save allows and denials — in an append-only JSONL log with SHA-256
// hash chaining, so an operator can prove after the fact what the
// adapter let an agent do.
package audit

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GenesisHash is the prev_hash for the first entry in a new log.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one audited tool decision.
type Entry struct {
	Timestamp string `json:"ts"`
	TraceID   string `json:"trace_id,omitempty"`
	Tool      string `json:"tool"`
	Resource  string `json:"resource,omitempty"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	PrevHash  string `json:"prev_hash"`
}

// Log appends entries to a JSONL file. Each line's prev_hash is the
// hash of the previous line, forming a tamper-evident chain.
type Log struct {
	mu       sync.Mutex
	file     *os.File
	prevHash string
}

// Open opens (or creates) a log file for appending. An existing file
// is scanned to recover the chain tail so appends continue the chain.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	prevHash, err := chainTail(path)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}

	return &Log{file: file, prevHash: prevHash}, nil
}

// Record appends an entry, stamping the timestamp when empty and
// filling prev_hash from the chain tail. The write is synced so the
// log survives a crash of the adapter.
func (l *Log) Record(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	entry.PrevHash = l.prevHash

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}

	l.prevHash = hashLine(line)
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// chainTail returns the hash of the last line of an existing log, or
// GenesisHash for a missing or empty file.
func chainTail(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GenesisHash, nil
		}
		return "", fmt.Errorf("audit: read existing log: %w", err)
	}
	defer f.Close()

	var last []byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		last = append(last[:0], scanner.Bytes()...)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("audit: scan existing log: %w", err)
	}
	if len(last) == 0 {
		return GenesisHash, nil
	}
	return hashLine(last), nil
}

func hashLine(line []byte) string {
	sum := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(sum[:])
}
