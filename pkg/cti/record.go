package cti

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const secretNamePrefix = "artifact-key-"

// Record is the metadata committed to the ledger for one artifact. It
// references the encrypted blob and the vault key but never holds either.
type Record struct {
	UUID           string   `json:"UUID"`
	Description    string   `json:"Description"`
	Timestamp      string   `json:"Timestamp"`
	SenderIdentity string   `json:"SenderIdentity"`
	CID            string   `json:"CID"`
	VaultKey       string   `json:"VaultKey"`
	SHA256Hash     string   `json:"SHA256Hash"`
	AccessList     []string `json:"AccessList"`
}

// SecretName derives the vault key name for an artifact id.
func SecretName(uuid string) string {
	return secretNamePrefix + uuid
}

// FormatTimestamp renders t the way records store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Validate checks a record before it is committed. Every field except
// Description is required.
func (r *Record) Validate() error {
	var missing []string
	if r.UUID == "" {
		missing = append(missing, "UUID")
	}
	if r.Timestamp == "" {
		missing = append(missing, "Timestamp")
	}
	if r.SenderIdentity == "" {
		missing = append(missing, "SenderIdentity")
	}
	if r.CID == "" {
		missing = append(missing, "CID")
	}
	if r.VaultKey == "" {
		missing = append(missing, "VaultKey")
	}
	if r.SHA256Hash == "" {
		missing = append(missing, "SHA256Hash")
	}
	if r.AccessList == nil {
		missing = append(missing, "AccessList")
	}
	if len(missing) > 0 {
		return Errorf(KindInvalidRecord, "validate", "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ParseRecord decodes a record read back from the ledger. Only the fields the
// read path depends on are enforced.
func ParseRecord(b []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, E(KindResponseFormat, "parse record", err)
	}
	if r.CID == "" || r.VaultKey == "" {
		return nil, Errorf(KindResponseFormat, "parse record", "record %q is missing CID or VaultKey", r.UUID)
	}
	return &r, nil
}

// Marshal encodes the record for submission.
func (r *Record) Marshal() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", r.UUID, err)
	}
	return b, nil
}
