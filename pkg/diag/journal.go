/*
 * Copyright 2026 ThingDB.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package diag appends timestamped diagnostic records to durable storage.
// The journal is the primary debugging surface when the device is network
// unreachable, so it lives on boot-accessible media (the SD card's boot
// partition by default) and every record is synced before the append
// returns.
package diag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/thingdb/netprov/pkg/models"
)

// RecordType classifies journal entries.
type RecordType string

const (
	RecordSnapshot RecordType = "snapshot"
	RecordRecovery RecordType = "recovery"
	RecordCritical RecordType = "critical"
)

// DefaultJournalPath is on the boot partition, which stays readable from
// any machine the SD card is moved to.
const DefaultJournalPath = "/boot/netprov/diagnostics.log"

const journalFileMode = 0o644

// Record is one append-only journal entry. Records are never mutated after
// creation.
type Record struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      RecordType             `json:"type"`
	Message   string                 `json:"message,omitempty"`
	Snapshot  *models.HealthSnapshot `json:"snapshot,omitempty"`
}

// Journal is a synced append-only JSON-lines writer.
type Journal struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		path = DefaultJournalPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, journalFileMode)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Journal{file: f}, nil
}

// Append writes one record and syncs it to media before returning.
func (j *Journal) Append(rec *Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal journal record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append journal record: %w", err)
	}

	// The journal must survive sudden power loss on exactly the failure
	// paths it documents.
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}

	return nil
}

// AppendSnapshot records a health sample.
func (j *Journal) AppendSnapshot(snap *models.HealthSnapshot) error {
	return j.Append(&Record{
		Timestamp: snap.Timestamp,
		Type:      RecordSnapshot,
		Snapshot:  snap,
	})
}

// AppendRecovery records a recovery action.
func (j *Journal) AppendRecovery(message string) error {
	return j.Append(&Record{Type: RecordRecovery, Message: message})
}

// AppendCritical records an escalation that stops automated recovery.
func (j *Journal) AppendCritical(message string) error {
	return j.Append(&Record{Type: RecordCritical, Message: "CRITICAL: " + message})
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.file.Close()
}
