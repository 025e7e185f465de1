package api

import (
	"log"
	"net/http"

	"inventaris/server/internal/errs"

	"github.com/gin-gonic/gin"
)

// statusFor сопоставляет тип ошибки движка с HTTP статусом
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUnitMismatch, errs.KindExclusiveSupplier:
		return http.StatusUnprocessableEntity
	case errs.KindInsufficientStock, errs.KindDuplicateRecipe:
		return http.StatusConflict
	case errs.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError отдает ошибку в формате {"error": <тип>, "details": <текст>}
func respondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"error":   string(kind),
		"details": err.Error(),
	})
}

// respondBadRequest - тело запроса не разобралось
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   string(errs.KindValidation),
		"details": err.Error(),
	})
}
