package middleware

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"

	appErrors "github.com/robofleet/change-request-bot/pkg/errors"
	"github.com/robofleet/change-request-bot/pkg/response"
)

// SlackSignature verifies the request signature Slack computes with the
// app's signing secret. Unsigned or stale deliveries never reach the core.
func SlackSignature(signingSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unreadable request body"))
			c.Abort()
			return
		}
		// Hand the body back for the form parser downstream.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		verifier, err := slack.NewSecretsVerifier(c.Request.Header, signingSecret)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "missing signature headers"))
			c.Abort()
			return
		}
		if _, err := verifier.Write(body); err != nil {
			response.Error(c, appErrors.ErrInternal)
			c.Abort()
			return
		}
		if err := verifier.Ensure(); err != nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Next()
	}
}
