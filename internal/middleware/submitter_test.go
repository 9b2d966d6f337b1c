package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

func TestParseSubmitterToken(t *testing.T) {
	salt := "pepper"

	tests := []struct {
		name     string
		token    string
		ok       bool
		expected models.Submitter
	}{
		{
			name:     "Valid checksum",
			token:    SubmitterToken("alice", salt),
			ok:       true,
			expected: models.Submitter{UserID: "alice", Verified: true},
		},
		{
			name:     "User with underscores",
			token:    SubmitterToken("bob_the_builder", salt),
			ok:       true,
			expected: models.Submitter{UserID: "bob_the_builder", Verified: true},
		},
		{
			name:     "Bad checksum still yields user",
			token:    "bonjwatv_token_alice_0000",
			ok:       true,
			expected: models.Submitter{UserID: "alice", Verified: false},
		},
		{
			name:     "No checksum",
			token:    "bonjwatv_token_alice",
			ok:       true,
			expected: models.Submitter{UserID: "alice", Verified: false},
		},
		{
			name:  "Wrong prefix",
			token: "other_token_alice_abc",
			ok:    false,
		},
		{
			name:  "Empty user",
			token: "bonjwatv_token_",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, ok := ParseSubmitterToken(tt.token, salt)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, sub)
			}
		})
	}
}

func TestSubmitterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, logging.Config{Level: "debug", Format: "json"})

	var got models.Submitter
	var found bool
	router := gin.New()
	router.Use(Submitter("pepper", logger))
	router.GET("/me", func(c *gin.Context) {
		got, found = GetSubmitter(c)
		c.Status(http.StatusOK)
	})

	// Header fallback
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-User-Name", "User One")
	router.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, found)
	assert.Equal(t, models.Submitter{UserID: "u1", DisplayName: "User One"}, got)

	// Token takes precedence; mismatch is logged
	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("X-Submitter-Token", "bonjwatv_token_mallory_bad")
	req.Header.Set("X-User-Id", "u1")
	router.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, found)
	assert.Equal(t, "mallory", got.UserID)
	assert.False(t, got.Verified)
	assert.Contains(t, buf.String(), "checksum mismatch")

	// Nothing supplied
	req = httptest.NewRequest("GET", "/me", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, found)
}
