package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kron12345/coreplanx/internal/timetable"
)

// reasonMalformedBody marks a request body that is not valid JSON.
const reasonMalformedBody = "malformed_body"

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
	ID     string `json:"id,omitempty"`
}

var statusByCode = map[timetable.Code]int{
	timetable.CodeUnavailable:        http.StatusServiceUnavailable,
	timetable.CodeInvalidArgument:    http.StatusBadRequest,
	timetable.CodeNotFound:           http.StatusNotFound,
	timetable.CodeAlreadyExists:      http.StatusConflict,
	timetable.CodeInvariantViolation: http.StatusUnprocessableEntity,
}

// writeError renders err. Errors without a timetable code are infrastructure
// failures and map to 500.
func writeError(c *gin.Context, err error) {
	var te *timetable.Error
	if !errors.As(err, &te) {
		c.JSON(http.StatusInternalServerError, ErrorBody{Error: err.Error(), Code: "internal"})
		return
	}
	status, ok := statusByCode[te.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, ErrorBody{Error: te.Error(), Code: string(te.Code), Reason: te.Reason, ID: te.ID})
}

func writeBadBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorBody{
		Error:  "request body: " + err.Error(),
		Code:   string(timetable.CodeInvalidArgument),
		Reason: reasonMalformedBody,
	})
}
