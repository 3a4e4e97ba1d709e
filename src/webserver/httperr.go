package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainfund/chainfund/src/faults"
	"github.com/chainfund/chainfund/src/txflow"
)

// statusOf maps the error taxonomy onto HTTP statuses. The message travels
// verbatim; the class decides the code.
func statusOf(err error) int {
	switch faults.ClassOf(err) {
	case faults.Validation:
		return http.StatusBadRequest
	case faults.UserRejected:
		return http.StatusConflict
	case faults.WrongNetwork, faults.WalletUnavailable:
		return http.StatusServiceUnavailable
	case faults.ContractRevert:
		return http.StatusUnprocessableEntity
	case faults.ReadFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"err": err.Error()})
}

// failRun reports a rejected lifecycle run. A run rejected after
// submission already has a tx hash the client needs for tracking, so the
// result body rides along with the error.
func failRun(c *gin.Context, r txflow.Result, err error) {
	body := gin.H{"err": err.Error()}
	if r.TxHash != "" {
		body["result"] = r
	}
	c.JSON(statusOf(err), body)
}
