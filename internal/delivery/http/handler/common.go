package handler

import (
	"errors"
	"strconv"
	"strings"

	"lendmark/internal/delivery/http/middleware"
	ucauth "lendmark/internal/usecase/auth"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

var errBadQuery = errors.New("bad query parameter")

func parseQueryIntStrict(c fiber.Ctx, key string, defaultVal int) (int, error) {
	s := strings.TrimSpace(c.Query(key))
	if s == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errBadQuery
	}
	return v, nil
}

func parseQueryInt64Strict(c fiber.Ctx, key string) (int64, error) {
	s := strings.TrimSpace(c.Query(key))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, errBadQuery
	}
	return v, nil
}

func parsePage(c fiber.Ctx, defLimit, maxLimit int) (int, int, error) {
	limit, err := parseQueryIntStrict(c, "limit", defLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err := parseQueryIntStrict(c, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	if limit <= 0 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset, nil
}

func pathUUID(c fiber.Ctx, key string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(c.Params(key)))
	if err != nil {
		return uuid.Nil, middleware.NewAppError(fiber.StatusBadRequest, "Invalid id", nil, err)
	}
	return id, nil
}

func currentUser(c fiber.Ctx) (uuid.UUID, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return uuid.Nil, middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}
	return id, nil
}

// invalidInput reports a 400 and carries per-field messages when the
// usecase produced them.
func invalidInput(err error) error {
	var fields ucauth.FieldErrors
	if errors.As(err, &fields) {
		return middleware.NewAppError(fiber.StatusBadRequest, "Validation failed", map[string]string(fields), err)
	}
	return middleware.NewAppError(fiber.StatusBadRequest, "Invalid request payload", nil, err)
}
