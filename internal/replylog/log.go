package replylog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lhdbsbz/inboxagent/internal/reply"
)

// Entry is a single line in the JSONL reply log.
type Entry struct {
	ID         string           `json:"id"`
	Timestamp  time.Time        `json:"timestamp"`
	Source     string           `json:"source"` // "bridge" | "poller" | "api"
	Platform   reply.Platform   `json:"platform"`
	ThreadType reply.ThreadType `json:"threadType"`
	TargetID   string           `json:"targetId,omitempty"`
	SenderName string           `json:"senderName,omitempty"`
	Incoming   string           `json:"incoming"`
	Message    string           `json:"message"`
	Confidence float64          `json:"confidence"`
	RuleID     string           `json:"ruleId,omitempty"`
	Outcome    reply.Outcome    `json:"outcome"`
	Sent       bool             `json:"sent"`
	SendError  string           `json:"sendError,omitempty"`
}

// Log manages an append-only JSONL file of generated replies.
type Log struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Log {
	return &Log{path: path}
}

func (l *Log) Path() string { return l.path }

// Append writes e to the log, filling ID and Timestamp when unset.
func (l *Log) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("r%d", e.Timestamp.UnixNano())
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create reply log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open reply log: %w", err)
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// Recent returns up to n of the newest entries, oldest first.
// Malformed lines are skipped.
func (l *Log) Recent(n int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("open reply log: %w", err)
	}
	defer f.Close()

	entries := []Entry{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
		if n > 0 && len(entries) > n {
			entries = entries[1:]
		}
	}
	return entries, scanner.Err()
}
