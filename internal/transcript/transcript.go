// Package transcript records received datagrams and persists them as an
// indented JSON document.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/nexodus-io/hbprobe/internal/util"
)

// Entry is one received datagram.
type Entry struct {
	ReceivedAt    time.Time `json:"receivedAt"`
	Phase         string    `json:"phase"`
	From          string    `json:"from"`
	Size          int       `json:"size"`
	Framed        bool      `json:"framed,omitempty"`
	Checksum      *uint32   `json:"checksum,omitempty"`
	ChecksumValid *bool     `json:"checksumValid,omitempty"`
	JSON          any       `json:"json,omitempty"`
	Text          string    `json:"text,omitempty"`
	Error         string    `json:"error,omitempty"`
}

type document struct {
	Entries []Entry `json:"entries"`
}

type Transcript struct {
	File    string
	entries []Entry
	mu      sync.RWMutex
}

func New(file string) *Transcript {
	return &Transcript{
		File: file,
	}
}

func (t *Transcript) String() string {
	return fmt.Sprintf("file '%s'", t.File)
}

func (t *Transcript) Append(e Entry) {
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Entry(nil), t.entries...)
}

// Load will read the entries from the file, a missing file yields no entries.
func (t *Transcript) Load() error {
	doc := document{}
	if _, err := os.Stat(t.File); err != nil {
		t.mu.Lock()
		t.entries = nil
		t.mu.Unlock()
		return nil
	}
	f, err := os.Open(t.File)
	if err != nil {
		return err
	}
	defer util.IgnoreError(f.Close)
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode transcript %s: %w", t.File, err)
	}

	t.mu.Lock()
	t.entries = doc.Entries
	t.mu.Unlock()
	return nil
}

// Store saves the entries to the file
func (t *Transcript) Store() error {
	// Create the path to the file if it doesn't exist.
	dir := filepath.Dir(t.File)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}

	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")

	doc := document{Entries: t.Entries()}
	if doc.Entries == nil {
		doc.Entries = []Entry{}
	}
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return atomic.WriteFile(t.File, buf)
}
