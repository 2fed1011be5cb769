package main

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
)

func TestApplyAuthorizerIdentity(t *testing.T) {
	t.Run("Should replace a spoofed header with the JWT subject", func(t *testing.T) {
		req := events.APIGatewayV2HTTPRequest{
			Headers: map[string]string{"x-user-id": "attacker", "content-type": "application/json"},
			RequestContext: events.APIGatewayV2HTTPRequestContext{
				Authorizer: &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
					JWT: &events.APIGatewayV2HTTPRequestContextAuthorizerJWTDescription{
						Claims: map[string]string{"sub": "u1", "email": "u1@example.com"},
					},
				},
			},
		}

		assert.True(t, applyAuthorizerIdentity(&req))
		assert.Equal(t, "u1", req.Headers["X-User-ID"])
		assert.Equal(t, "u1@example.com", req.Headers["X-User-Email"])
		assert.NotContains(t, req.Headers, "x-user-id")
		assert.Equal(t, "application/json", req.Headers["content-type"])
	})

	t.Run("Should read a Lambda authorizer context", func(t *testing.T) {
		req := events.APIGatewayV2HTTPRequest{
			RequestContext: events.APIGatewayV2HTTPRequestContext{
				Authorizer: &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
					Lambda: map[string]interface{}{"sub": "u2"},
				},
			},
		}

		assert.True(t, applyAuthorizerIdentity(&req))
		assert.Equal(t, "u2", req.Headers["X-User-ID"])
	})

	t.Run("Should drop client headers without an authorizer", func(t *testing.T) {
		req := events.APIGatewayV2HTTPRequest{
			Headers: map[string]string{"X-User-ID": "attacker", "X-User-Email": "a@example.com"},
		}

		assert.False(t, applyAuthorizerIdentity(&req))
		assert.Empty(t, req.Headers)
	})
}
