package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/tillsync/internal/presentation/http/dto/response"
)

// lineIndex parses the :index path parameter. It writes a 400 and returns
// false when the parameter is not a non-negative integer.
func lineIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		response.BadRequest(c, "Invalid line index")
		return 0, false
	}
	return index, true
}

// bindOptionalJSON binds a JSON body, treating an empty body as the zero value
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
