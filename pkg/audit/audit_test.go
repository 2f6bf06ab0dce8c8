package audit_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pharmvec/pharmvec/pkg/audit"
)

func TestRecordHashesSubject(t *testing.T) {
	var buf bytes.Buffer
	l := audit.NewWithWriter(&buf)

	l.Record("user-42", "DOCUMENT_SEARCH", map[string]any{"query": "aspirin dosage"})

	out := buf.String()
	assert.NotContains(t, out, "user-42")
	assert.Contains(t, out, audit.HashSubject("user-42"))
	assert.Contains(t, out, "Action: DOCUMENT_SEARCH")
	assert.Contains(t, out, "query=aspirin dosage")
}

func TestRecordWithoutDetails(t *testing.T) {
	var buf bytes.Buffer
	l := audit.NewWithWriter(&buf)

	l.Record("user-42", "USER_LOGIN", nil)

	out := buf.String()
	assert.Contains(t, out, "Action: USER_LOGIN")
	assert.NotContains(t, out, "Details:")
}

func TestHashSubjectDeterministic(t *testing.T) {
	assert.Equal(t, audit.HashSubject("a"), audit.HashSubject("a"))
	assert.NotEqual(t, audit.HashSubject("a"), audit.HashSubject("b"))
	assert.Len(t, audit.HashSubject("a"), 64)
}
