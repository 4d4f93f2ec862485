package middleware

import (
	"context"
	"errors"
	"runtime/debug"

	"lendmark/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

type AppError struct {
	StatusCode int
	Message    string
	Data       interface{}
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewAppError(statusCode int, message string, data interface{}, cause error) *AppError {
	return &AppError{StatusCode: statusCode, Message: message, Data: data, Cause: cause}
}

type ErrorMiddleware struct {
	logger zerolog.Logger
}

func NewErrorMiddleware(logger zerolog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{logger: logger}
}

// Middleware renders handler errors and recovered panics as SemanticResponse
// bodies. Details of 5xx errors are logged, never sent.
func (m *ErrorMiddleware) Middleware() fiber.Handler {
	return func(c fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Str("rid", RequestID(c)).
					Str("path", c.Path()).
					Msg("panic recovered")
				err = response.Error(c, fiber.StatusInternalServerError, response.MessageInternalServerError, nil)
			}
		}()

		err = c.Next()
		if err == nil {
			return nil
		}

		p := classify(err)
		switch {
		case p.status == fiber.StatusServiceUnavailable:
			m.logger.Warn().Err(err).Str("rid", RequestID(c)).Str("path", c.Path()).Msg("request timed out")
		case p.status >= fiber.StatusInternalServerError:
			m.logger.Error().Err(err).
				Str("rid", RequestID(c)).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("request failed")
		}
		return response.Error(c, p.status, p.message, p.data)
	}
}

type problem struct {
	status  int
	message string
	data    interface{}
}

var internalProblem = problem{status: fiber.StatusInternalServerError, message: response.MessageInternalServerError}

// classify maps err onto what the client may see. A request whose context
// ran out is reported as 503 whatever the handler wrapped it in.
func classify(err error) problem {
	if err == nil {
		return internalProblem
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return problem{status: fiber.StatusServiceUnavailable, message: response.MessageServiceUnavailable}
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return clientProblem(appErr.StatusCode, appErr.Message, appErr.Data)
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return clientProblem(fiberErr.Code, fiberErr.Message, nil)
	}
	return internalProblem
}

func clientProblem(status int, msg string, data interface{}) problem {
	switch {
	case status == fiber.StatusServiceUnavailable:
		return problem{status: status, message: response.MessageServiceUnavailable}
	case status <= 0 || status >= fiber.StatusInternalServerError:
		return internalProblem
	}
	if msg == "" {
		msg = response.MessageForStatus(status)
	}
	return problem{status: status, message: msg, data: data}
}
