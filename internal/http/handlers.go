package http

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"

	"vidfetch/internal/artifact"
	"vidfetch/internal/config"
	"vidfetch/internal/model"
	"vidfetch/internal/registry"
	"vidfetch/internal/scheduler"
)

// submitHandler accepts a URL (form field or JSON) and starts a
// background download for it.
func submitHandler(c *fiber.Ctx) error {
	sched := c.Locals("scheduler").(Submitter)

	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil && req.URL == "" {
		// Fall back to a raw form value for clients that post without
		// a content type.
		req.URL = c.FormValue("url")
	}

	id, err := sched.Submit(req.URL)
	if err != nil {
		status := fiber.StatusInternalServerError
		switch {
		case errors.Is(err, scheduler.ErrInvalidURL):
			status = fiber.StatusBadRequest
		case errors.Is(err, scheduler.ErrQueueFull):
			status = fiber.StatusTooManyRequests
		}
		return c.Status(status).JSON(SubmitResponse{
			Success: false,
			Error:   err.Error(),
		})
	}

	return c.JSON(SubmitResponse{
		Success:    true,
		DownloadID: id,
	})
}

// statusHandler reports the current state of a job. Unknown ids map to
// an `expired` payload so pollers written against an older process
// stop cleanly instead of erroring.
func statusHandler(c *fiber.Ctx) error {
	reg := c.Locals("registry").(*registry.Registry)

	job, ok := reg.Get(c.Params("id"))
	if !ok {
		return c.JSON(ExpiredResponse{
			Status:   string(model.StatusExpired),
			Progress: 0,
		})
	}
	return c.JSON(job)
}

// serveHandler streams a finished artifact as an attachment. The
// filename comes straight from the URL, so it is joined defensively
// against the artifact root.
func serveHandler(c *fiber.Ctx) error {
	cfg := c.Locals("config").(*config.Config)

	notReady := func() error {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error: "File not ready - refresh page",
		})
	}

	path, err := artifact.SafeJoin(cfg.Downloads.Dir, c.Params("filename"))
	if err != nil {
		return notReady()
	}

	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return notReady()
	}

	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+fi.Name()+`"`)
	c.Set(fiber.HeaderContentType, "video/mp4")
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.SendFile(path)
}
