package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/stationpay/mpesa-gateway/app/controllers"
)

type ApiRouter struct {
	payments *controllers.PaymentController
}

func NewApiRouter(pc *controllers.PaymentController) *ApiRouter {
	return &ApiRouter{payments: pc}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	// The provider retries callbacks until acknowledged; never throttle them.
	app.Post("/api/v1/payments/callback", h.payments.HandleCallback)

	api := app.Group("/api", limiter.New())
	v1 := api.Group("/v1")
	v1.Post("/payments/stkpush", h.payments.HandleStkPush)
	v1.Get("/payments/status", h.payments.HandleStatus)
	v1.Post("/payments/status", h.payments.HandleStatus)
	v1.Post("/payments/poll", h.payments.HandlePoll)
}
