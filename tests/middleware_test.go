package tests

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/polisku/commission-engine/app/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServiceToken = "collaborator-shared-token-0123456789"

func newServiceAuthApp(serviceToken string) *fiber.App {
	app := fiber.New()
	app.Post("/events", middleware.ServiceAuthenticate(serviceToken), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestServiceAuthenticate(t *testing.T) {
	app := newServiceAuthApp(testServiceToken)

	t.Run("ValidTokenPasses", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/events", nil)
		req.Header.Set("X-Service-Token", testServiceToken)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})

	t.Run("MissingTokenRejected", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/events", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("WrongTokenRejected", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodPost, "/events", nil)
		req.Header.Set("X-Service-Token", "not-the-configured-token")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("EmptyConfiguredTokenRejectsAll", func(t *testing.T) {
		unconfigured := newServiceAuthApp("")

		req := httptest.NewRequest(fiber.MethodPost, "/events", nil)
		req.Header.Set("X-Service-Token", "")

		resp, err := unconfigured.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}
