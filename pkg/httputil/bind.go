package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/neuroscan-api/pkg/errors"
	"github.com/jwalitptl/neuroscan-api/pkg/validator"
)

// BindJSON decodes and validates the request body into v. On failure it
// writes a 400 and returns false.
func BindJSON(c *gin.Context, v interface{}) bool {
	validator.Engine()
	if err := c.ShouldBindJSON(v); err != nil {
		RespondWithError(c, errors.BadRequest(validator.Describe(err).Error(), err))
		return false
	}
	return true
}

// ParamID parses a positive integer path parameter. On failure it writes a
// 400 and returns false.
func ParamID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		RespondWithError(c, errors.BadRequest("invalid "+name, err))
		return 0, false
	}
	return id, true
}
