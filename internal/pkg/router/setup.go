package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lionelbuh/touchconnectpro/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies carries what the routers need from main.
type Dependencies struct {
	Billing *controllers.BillingController
	// LimiterStorage backs the API rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
	InternalAPIKey string
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// The webhook router goes first so no API middleware ever touches the
	// raw body Stripe signed.
	setup(app, NewWebhookRouter(deps.Billing), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
