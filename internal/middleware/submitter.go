package middleware

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/logging"
	"github.com/therealutkarshpriyadarshi/subcatalog/pkg/models"
)

const (
	SubmitterContextKey  = "submitter"
	submitterTokenPrefix = "bonjwatv_token_"
)

// SubmitterChecksum is the hex md5 of user id and salt
func SubmitterChecksum(userID, salt string) string {
	sum := md5.Sum([]byte(userID + salt))
	return hex.EncodeToString(sum[:])
}

// SubmitterToken builds a bonjwatv_token_<user>_<md5> token
func SubmitterToken(userID, salt string) string {
	return submitterTokenPrefix + userID + "_" + SubmitterChecksum(userID, salt)
}

// ParseSubmitterToken extracts the user from a submitter token.
// A token whose checksum does not match still yields the user, with
// Verified false. ok is false only when no user can be read at all.
func ParseSubmitterToken(token, salt string) (models.Submitter, bool) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, submitterTokenPrefix) {
		return models.Submitter{}, false
	}
	rest := strings.TrimPrefix(token, submitterTokenPrefix)
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 {
		if rest == "" {
			return models.Submitter{}, false
		}
		return models.Submitter{UserID: rest}, true
	}
	user, checksum := rest[:idx], rest[idx+1:]
	return models.Submitter{
		UserID:   user,
		Verified: strings.EqualFold(checksum, SubmitterChecksum(user, salt)),
	}, true
}

// Submitter resolves the calling user from X-Submitter-Token, falling back
// to the X-User-Id and X-User-Name headers set by the front end.
func Submitter(salt string, logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return func(c *gin.Context) {
		var sub models.Submitter
		found := false

		if token := c.GetHeader("X-Submitter-Token"); token != "" {
			sub, found = ParseSubmitterToken(token, salt)
			if found && !sub.Verified {
				logger.WithUserID(sub.UserID).Warn("Submitter token checksum mismatch")
			}
		}
		if !found {
			if id := strings.TrimSpace(c.GetHeader("X-User-Id")); id != "" {
				sub = models.Submitter{UserID: id}
				found = true
			}
		}
		if found {
			sub.DisplayName = strings.TrimSpace(c.GetHeader("X-User-Name"))
			c.Set(SubmitterContextKey, sub)
		}
		c.Next()
	}
}

// GetSubmitter retrieves the submitter resolved by Submitter
func GetSubmitter(c *gin.Context) (models.Submitter, bool) {
	v, exists := c.Get(SubmitterContextKey)
	if !exists {
		return models.Submitter{}, false
	}
	sub, ok := v.(models.Submitter)
	return sub, ok
}
