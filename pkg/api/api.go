// Package api exposes scanning, connection and weight operations of a hub
// via a small REST surface.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spooltrack/blescale/pkg/driver"
	"github.com/spooltrack/blescale/pkg/scale"
)

const commandTimeout = 15 * time.Second

// API denotes a REST API for a scale hub
type API struct {
	hub    *driver.Hub
	router *fiber.App
}

// New instantiates a new API over the given hub
func New(hub *driver.Hub) *API {

	api := API{
		hub:    hub,
		router: fiber.New(),
	}

	// Setup routes
	api.router.Get("/devices", api.handleDevices())
	api.router.Post("/scan/start", api.handleScanStart())
	api.router.Post("/scan/stop", api.handleScanStop())
	api.router.Post("/connect/:addr", api.handleConnect())
	api.router.Post("/disconnect", api.handleDisconnect())
	api.router.Post("/reading/start", api.handleReadingStart())
	api.router.Post("/reading/stop", api.handleReadingStop())
	api.router.Get("/reading", api.handleReading())
	api.router.Post("/tare", api.handleTare())
	api.router.Get("/status", api.handleStatus())

	return &api
}

// Serve blocks, listening on the given endpoint
func (api *API) Serve(endpoint string) error {
	return api.router.Listen(endpoint)
}

// Shutdown gracefully terminates the listener
func (api *API) Shutdown() error {
	return api.router.Shutdown()
}

////////////////////////////////////////////////////////////////////////////////

func (api *API) handleDevices() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return c.JSON(api.hub.Scanner().Devices())
	}
}

func (api *API) handleScanStart() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if err := api.hub.Scanner().Start(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return c.JSON(fiber.Map{"scanning": api.hub.Scanner().Scanning()})
	}
}

func (api *API) handleScanStop() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		api.hub.Scanner().Stop()

		return c.JSON(fiber.Map{"scanning": false})
	}
}

func (api *API) handleConnect() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), commandTimeout)
		defer cancel()

		ctrl, err := api.hub.Connect(ctx, c.Params("addr"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}

		return c.JSON(ctrl.DeviceInfo())
	}
}

func (api *API) handleDisconnect() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if err := api.hub.Disconnect(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (api *API) handleReadingStart() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		ctrl, ok := api.hub.Controller()
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "no device connected")
		}

		if err := ctrl.StartContinuousReading(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (api *API) handleReadingStop() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		ctrl, ok := api.hub.Controller()
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "no device connected")
		}

		if err := ctrl.StopContinuousReading(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (api *API) handleReading() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		ctrl, ok := api.hub.Controller()
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "no device connected")
		}

		ctx, cancel := context.WithTimeout(c.Context(), commandTimeout)
		defer cancel()

		r, err := ctrl.SingleReading(ctx)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		return c.JSON(fiber.Map{
			"reading":           r,
			"display":           r.Format(),
			"valid_for_capture": r.IsValidForCapture(),
		})
	}
}

func (api *API) handleTare() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		ctrl, ok := api.hub.Controller()
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "no device connected")
		}

		ctx, cancel := context.WithTimeout(c.Context(), commandTimeout)
		defer cancel()

		res := ctrl.Tare(ctx)
		if !res.OK() {
			return fiber.NewError(fiber.StatusBadGateway, res.Message)
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (api *API) handleStatus() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		out := fiber.Map{
			"scanning": api.hub.Scanner().Scanning(),
			"state":    scale.StateDisconnected.String(),
		}

		if ctrl, ok := api.hub.Controller(); ok {
			status := ctrl.ConnectionStatus()
			out["state"] = status.State.String()
			if status.Error != nil {
				out["error"] = status.Error.Error()
			}
			out["device"] = ctrl.DeviceInfo()
		}

		return c.JSON(out)
	}
}
