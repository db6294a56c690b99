package httpapi

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/homey"
	"github.com/i474232898/easy-homey/internal/integration"
	"github.com/i474232898/easy-homey/internal/setup"
	"github.com/i474232898/easy-homey/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, entry *integration.Integration, flow *setup.Flow) {
	v1 := app.Group("/api/v1")

	v1.Get("/device", func(c *fiber.Ctx) error {
		return c.JSON(entry.Device())
	})

	v1.Get("/entities", func(c *fiber.Ctx) error {
		hub, err := entry.Hub()
		if err != nil {
			return entryError(err)
		}
		states := hub.States()
		if name := c.Query("coordinator"); name != "" {
			filtered := states[:0]
			for _, st := range states {
				if st.Coordinator == name {
					filtered = append(filtered, st)
				}
			}
			states = filtered
		}
		return c.JSON(states)
	})

	v1.Get("/entities/:id", func(c *fiber.Ctx) error {
		hub, err := entry.Hub()
		if err != nil {
			return entryError(err)
		}
		e, ok := hub.Get(c.Params("id"))
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown entity")
		}
		return c.JSON(e.State())
	})

	v1.Get("/entities/:id/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		states, err := entry.Store().GetRange(req.EntityID, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no entity history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch entity history")
		}

		return c.JSON(fiber.Map{
			"unique_id": req.EntityID,
			"from":      req.From,
			"to":        req.To,
			"states":    states,
		})
	})

	v1.Get("/coordinators", func(c *fiber.Ctx) error {
		statuses, err := entry.Coordinators()
		if err != nil {
			return entryError(err)
		}
		return c.JSON(statuses)
	})

	v1.Post("/coordinators/:name/refresh", func(c *fiber.Ctx) error {
		status, err := entry.Refresh(c.UserContext(), c.Params("name"))
		if err != nil {
			return entryError(err)
		}
		return c.JSON(status)
	})

	v1.Get("/waste-collections", func(c *fiber.Ctx) error {
		client, err := entry.Client()
		if err != nil {
			return entryError(err)
		}
		raw, err := client.AllWasteCollections(c.UserContext())
		if err != nil {
			return entryError(err)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(raw)
	})

	registerOptionRoutes(v1, flow)
}

func registerOptionRoutes(v1 fiber.Router, flow *setup.Flow) {
	v1.Post("/setup/validate", func(c *fiber.Ctx) error {
		var g setup.General
		if err := c.BodyParser(&g); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		errs := flow.ValidateGeneral(c.UserContext(), g)
		return c.JSON(fiber.Map{"valid": len(errs) == 0, "errors": errs})
	})

	opts := v1.Group("/options")

	opts.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(settingsView(flow.Settings()))
	})

	opts.Put("/general", func(c *fiber.Ctx) error {
		var g setup.General
		if err := c.BodyParser(&g); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		errs, err := flow.UpdateGeneral(c.UserContext(), g)
		return formResult(c, flow, errs, err)
	})

	opts.Post("/user-locations", func(c *fiber.Ctx) error {
		var ul config.UserLocation
		if err := c.BodyParser(&ul); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		errs, err := flow.AddUserLocation(c.UserContext(), ul)
		return formResult(c, flow, errs, err)
	})

	opts.Delete("/user-locations/:name", func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return formResult(c, flow, nil, flow.RemoveUserLocation(c.UserContext(), name))
	})

	opts.Post("/station-ids", func(c *fiber.Ctx) error {
		var req struct {
			StationID string `json:"station_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		errs, err := flow.AddStationID(c.UserContext(), req.StationID)
		return formResult(c, flow, errs, err)
	})

	opts.Delete("/station-ids/:id", func(c *fiber.Ctx) error {
		id, err := url.PathUnescape(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return formResult(c, flow, nil, flow.RemoveStationID(c.UserContext(), id))
	})
}

// formResult renders form errors as 422 and otherwise the saved settings.
func formResult(c *fiber.Ctx, flow *setup.Flow, errs setup.Errors, err error) error {
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	if len(errs) > 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": errs})
	}
	return c.JSON(settingsView(flow.Settings()))
}

// settingsView is the public rendering of settings. The API key is never echoed.
func settingsView(s config.Settings) fiber.Map {
	userLocations := s.UserLocations
	if userLocations == nil {
		userLocations = []config.UserLocation{}
	}
	stationIDs := s.StationIDs
	if stationIDs == nil {
		stationIDs = []string{}
	}
	return fiber.Map{
		"base_url":                    s.BaseURL,
		"api_key_set":                 s.APIKey != "",
		"location_entity_id":          s.LocationEntityID,
		"location_entity_id_cheapest": s.LocationEntityIDCheapest,
		"location_entity_id_nearest":  s.LocationEntityIDNearest,
		"warning_cell_id":             s.WarningCellID,
		"search_radius":               s.SearchRadius,
		"petrol_type":                 s.PetrolType,
		"petrol_update_interval":      s.PetrolInterval,
		"weather_update_interval":     s.WeatherInterval,
		"pollen_update_interval":      s.PollenInterval,
		"waste_update_interval":       s.WasteInterval,
		"user_locations":              userLocations,
		"station_ids":                 stationIDs,
	}
}

// entryError maps integration and client errors to HTTP errors.
func entryError(err error) error {
	switch {
	case errors.Is(err, integration.ErrNotLoaded):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, integration.ErrUnknownCoordinator):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, homey.ErrAPI):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	EntityID string    `validate:"required"`
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.EntityID = c.Params("id")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
