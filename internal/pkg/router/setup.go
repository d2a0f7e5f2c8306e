package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/stationpay/mpesa-gateway/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App, pc *controllers.PaymentController) {
	setup(app, NewApiRouter(pc))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
