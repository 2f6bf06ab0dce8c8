package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pharmvec/pharmvec/internal/types"
)

// Logger writes one line per user-visible action. The subject id is
// hashed so the trail never holds a reversible user identifier, and
// timestamps are UTC. Raw credentials or tokens must never be passed
// in as details.
type Logger struct {
	logger *log.Logger
}

var _ types.AuditLogger = (*Logger)(nil)

func New() *Logger {
	return NewWithWriter(os.Stderr)
}

func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		logger: log.New(w, "", 0),
	}
}

func (l *Logger) Record(subject, action string, details map[string]any) {
	msg := fmt.Sprintf("UserAction | HashedID: %s | Timestamp: %s | Action: %s",
		HashSubject(subject),
		time.Now().UTC().Format(time.RFC3339),
		action)
	if len(details) > 0 {
		msg += " | Details: " + formatDetails(details)
	}
	l.logger.Println(msg)
}

// HashSubject returns a non-reversible identifier for a subject id.
func HashSubject(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:])
}

func formatDetails(details map[string]any) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, details[k])
	}

	return strings.Join(parts, " ")
}
