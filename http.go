package booknetwork

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the JSON error body: a stable machine code plus a human
// message.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RenderError maps a rich error onto an HTTP status and writes the JSON body.
// Business categories keep their message; everything else collapses to a
// generic 500 so internals never leak.
func RenderError(ctx router.Context, logger Logger, err error) error {
	if logger == nil {
		logger = defLogger{}
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	status := statusForCategory(richErr.Category)
	if status >= 500 {
		logger.Error("request failed: %v", err)
		return ctx.JSON(status, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected server error occurred",
		})
	}

	logger.Debug("request refused code=%s status=%d", richErr.TextCode, status)

	code := richErr.TextCode
	if code == "" {
		code = "REQUEST_FAILED"
	}

	return ctx.JSON(status, ErrorResponse{
		Code:    code,
		Message: richErr.Message,
	})
}

func statusForCategory(category errors.Category) int {
	switch category {
	case errors.CategoryAuth:
		return router.StatusUnauthorized
	case errors.CategoryAuthz:
		return router.StatusForbidden
	case errors.CategoryNotFound:
		return router.StatusNotFound
	case errors.CategoryConflict, errors.CategoryValidation, errors.CategoryBadInput:
		return router.StatusBadRequest
	case errors.CategoryRateLimit:
		return router.StatusTooManyRequests
	default:
		return router.StatusInternalServerError
	}
}

// CurrentUser pulls the identity the request gate stored. Handlers that
// require authentication fail closed when the gate left nothing behind.
func CurrentUser(ctx router.Context, contextKey string) (Identity, error) {
	raw := ctx.Locals(contextKey)
	if raw == nil {
		return nil, errors.New("authentication required", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode("AUTHENTICATION_REQUIRED")
	}

	identity, ok := raw.(Identity)
	if !ok || identity == nil {
		return nil, errors.New("authentication required", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode("AUTHENTICATION_REQUIRED")
	}

	return identity, nil
}
