// Package errxfiber renders errx errors as fiber responses.
package errxfiber

import (
	"errors"

	"github.com/Abraxas-365/docfill/pkg/errx"
	"github.com/Abraxas-365/docfill/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler converts returned handler errors to JSON responses. With debug
// set the underlying cause is included.
func ErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := c.Get(fiber.HeaderXRequestID)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errx.HTTPErrorResponse{
				Error:     fe.Message,
				Code:      "FIBER_ERROR",
				Type:      string(errx.TypeValidation),
				Status:    fe.Code,
				RequestID: requestID,
			})
		}

		e := errx.FromError(err)
		entry := logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"request_id": requestID,
			"code":       e.Code,
		}).WithError(err)
		if e.HTTPStatus >= fiber.StatusInternalServerError {
			entry.Error("request.failed")
		} else {
			entry.Debug("request.rejected")
		}

		resp := e.ToHTTPResponse()
		resp.RequestID = requestID
		if debug && e.Err != nil {
			resp.Cause = e.Err.Error()
		}
		return c.Status(e.HTTPStatus).JSON(resp)
	}
}
