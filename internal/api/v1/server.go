package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// ServerInterface represents all server handlers of public/docs/v1/openapi.yml.
type ServerInterface interface {
	// (GET /ping)
	GetPing(c *fiber.Ctx) error
	// (POST /billing/checkout)
	PostBillingCheckout(c *fiber.Ctx) error
	// (POST /billing/portal)
	PostBillingPortal(c *fiber.Ctx) error
	// (GET /membership)
	GetMembership(c *fiber.Ctx, params GetMembershipParams) error
}

// ServerInterfaceWrapper converts fiber contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (siw *ServerInterfaceWrapper) GetPing(c *fiber.Ctx) error {
	return siw.Handler.GetPing(c)
}

func (siw *ServerInterfaceWrapper) PostBillingCheckout(c *fiber.Ctx) error {
	return siw.Handler.PostBillingCheckout(c)
}

func (siw *ServerInterfaceWrapper) PostBillingPortal(c *fiber.Ctx) error {
	return siw.Handler.PostBillingPortal(c)
}

func (siw *ServerInterfaceWrapper) GetMembership(c *fiber.Ctx) error {
	var params GetMembershipParams
	if err := c.QueryParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Error{Error: "invalid_request", Message: "Invalid query parameters"})
	}
	return siw.Handler.GetMembership(c, params)
}

// RegisterHandlers creates the routes for every ServerInterface operation.
func RegisterHandlers(router fiber.Router, si ServerInterface) {
	wrapper := ServerInterfaceWrapper{Handler: si}

	router.Get("/ping", wrapper.GetPing)
	router.Post("/billing/checkout", wrapper.PostBillingCheckout)
	router.Post("/billing/portal", wrapper.PostBillingPortal)
	router.Get("/membership", wrapper.GetMembership)
}
