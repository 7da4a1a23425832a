package controllers

import (
	"errors"
	"net/http"

	"grocery/services"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[services.Kind]int{
	services.KindValidation:   http.StatusBadRequest,
	services.KindNotFound:     http.StatusNotFound,
	services.KindConflict:     http.StatusConflict,
	services.KindUnauthorized: http.StatusUnauthorized,
	services.KindUpstream:     http.StatusInternalServerError,
	services.KindInternal:     http.StatusInternalServerError,
}

// respondError writes {"error": message} with the status of the error kind.
// Causes are attached to the gin context for the request logger and never
// sent to clients.
func respondError(c *gin.Context, err error) {
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		svcErr = services.NewInternal(err)
	}
	if svcErr.Err != nil || svcErr.Kind == services.KindInternal {
		_ = c.Error(err)
	}
	c.JSON(kindStatus[svcErr.Kind], gin.H{"error": svcErr.Message})
}

func respondInvalid(c *gin.Context, err error) {
	msg := "Invalid request"
	if gin.Mode() != gin.ReleaseMode && err != nil {
		msg = err.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
