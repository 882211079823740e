package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lionelbuh/touchconnectpro/app/controllers"
)

type WebhookRouter struct {
	billing *controllers.BillingController
}

func (h WebhookRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", controllers.HandleHealth)
	app.Post("/webhooks/stripe", h.billing.HandleStripeWebhook)
}

func NewWebhookRouter(billing *controllers.BillingController) *WebhookRouter {
	return &WebhookRouter{billing: billing}
}
