// Package history owns the plain-text sinks surrounding the pipeline:
// an append-only activity log for ingestion runs and a per-session
// question/answer history file. Both are human-readable and timestamped;
// nothing ever reads them back.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// ActivityLog appends timestamped one-line entries to a file.
type ActivityLog struct {
	path string
	now  func() time.Time
}

func NewActivityLog(path string) *ActivityLog {
	return &ActivityLog{path: path, now: time.Now}
}

// Append writes one "[timestamp] message" line. Failure to write the
// log never blocks the pipeline, so the error is advisory.
func (l *ActivityLog) Append(format string, args ...any) error {
	line := fmt.Sprintf("[%s] %s\n", l.now().Format(timeLayout), fmt.Sprintf(format, args...))
	return appendLine(l.path, line)
}

// Session records question/answer pairs for one day's session in a
// history_YYYYMMDD.txt file under dir.
type Session struct {
	path string
	now  func() time.Time
}

func NewSession(dir string) *Session {
	now := time.Now
	name := fmt.Sprintf("history_%s.txt", now().Format("20060102"))
	return &Session{path: filepath.Join(dir, name), now: now}
}

// Path returns the session file location, for telling the user where
// their history went.
func (s *Session) Path() string { return s.path }

// Append records one answered question with its citations.
func (s *Session) Append(question, answer string, citations []string) error {
	var b strings.Builder
	sep := strings.Repeat("=", 60)
	fmt.Fprintf(&b, "\n%s\n", sep)
	fmt.Fprintf(&b, "Date: %s\n", s.now().Format(timeLayout))
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Answer: %s\n", answer)
	fmt.Fprintf(&b, "Sources: %s\n", strings.Join(citations, ", "))
	fmt.Fprintf(&b, "%s\n", sep)
	return appendLine(s.path, b.String())
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}
