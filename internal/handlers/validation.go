package handlers

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/charlesng35/hrconsole/pkg/errors"
	"github.com/charlesng35/hrconsole/pkg/response"
	"github.com/charlesng35/hrconsole/pkg/validator"
)

// bindAndValidate decodes the JSON body into dest and checks its validate tags. On failure the 400
// envelope has been written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	err := c.ShouldBindJSON(dest)
	if err == nil {
		err = validator.ValidateStruct(dest)
	}
	if err == nil {
		return true
	}
	response.Error(c, requestError(err))
	return false
}

func requestError(err error) *apperrors.AppError {
	var failures validator.ValidationErrors
	switch {
	case errors.As(err, &failures) && len(failures) > 0:
		return apperrors.NewBadRequest(failures.Error()).WithFields(failures.Fields())
	case errors.Is(err, io.EOF):
		return apperrors.NewBadRequest("request body is required")
	default:
		return apperrors.NewBadRequest("invalid JSON payload")
	}
}

// queryInt reads a non-negative integer query parameter, falling back on absence or garbage.
func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query(key)))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
