package gemini

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pharma-quotes/internal/llm"
	"github.com/joseph-ayodele/pharma-quotes/internal/segment"
)

func TestExtractSendsInlineDataAndPrompt(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"[{\"nombre\":"},{"text":"\"x\"}]"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)
	out, err := c.Extract(t.Context(), segment.Unit{Index: 0, Data: []byte("%PDF-1.4"), MIMEType: "application/pdf"})
	require.NoError(t, err)
	assert.Equal(t, `[{"nombre":"x"}]`, out)

	require.Len(t, got.Contents, 1)
	parts := got.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "application/pdf", parts[0].InlineData.MIMEType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")), parts[0].InlineData.Data)
	assert.Equal(t, llm.ExtractionPrompt, parts[1].Text)
}

func TestExtractMapsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.Extract(t.Context(), segment.Unit{Data: []byte{1}, MIMEType: "image/png"})
	require.Error(t, err)

	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, "RESOURCE_EXHAUSTED", se.Status)
	assert.Equal(t, "quota exceeded", se.Body)
	assert.True(t, llm.IsRetryable(err))
}

func TestExtractNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.Extract(t.Context(), segment.Unit{Data: []byte{1}, MIMEType: "image/png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SAFETY")
	assert.False(t, llm.IsRetryable(err))
}
