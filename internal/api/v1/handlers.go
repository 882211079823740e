package apiv1

import (
	"github.com/gofiber/fiber/v2"

	// Delegate to existing controllers to keep behavior consistent
	"github.com/lionelbuh/touchconnectpro/app/controllers"
)

// APIServer implements the ServerInterface
type APIServer struct {
	billing *controllers.BillingController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(billing *controllers.BillingController) *APIServer {
	return &APIServer{billing: billing}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

func (s *APIServer) PostBillingCheckout(c *fiber.Ctx) error {
	return s.billing.HandleCreateCheckout(c)
}

func (s *APIServer) PostBillingPortal(c *fiber.Ctx) error {
	return s.billing.HandleCreatePortal(c)
}

// GetMembership reports payment and approval status for an entrepreneur.
func (s *APIServer) GetMembership(c *fiber.Ctx, params GetMembershipParams) error {
	return s.billing.HandleGetMembership(c, params.Email)
}
