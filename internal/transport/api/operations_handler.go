package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/fsdevblog/groph-balance/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type OperationsHandler struct {
	svs OperationServicer
}

func NewOperationsHandler(svs OperationServicer) *OperationsHandler {
	return &OperationsHandler{
		svs: svs,
	}
}

type OperationCreateParams struct {
	Type        string          `binding:"required,oneof=credit debit" json:"type"`
	Amount      decimal.Decimal `binding:"required"                    json:"amount"`
	Description string          `binding:"required,max=255"            json:"description"`
}

type OperationCreateResponse struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// Create POST RouteGroup + OperationsRoute. Ставит операцию в очередь и отвечает 202:
// сама мутация выполнится воркером асинхронно.
func (o *OperationsHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params OperationCreateParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		var valErrs validator.ValidationErrors
		if errors.As(bindErr, &valErrs) {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": valErrs})
			return
		}
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	op, err := o.svs.Enqueue(reqCtx, service.ApplyOperationArgs{
		UserID:      currentUserID,
		Type:        domain.TransactionType(params.Type),
		Amount:      params.Amount,
		Description: params.Description,
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			_ = c.AbortWithError(http.StatusUnprocessableEntity, err).SetType(gin.ErrorTypePublic)
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusAccepted, &OperationCreateResponse{
		ID:     op.ID,
		Status: string(op.Status),
	})
}

// Cancel DELETE RouteGroup + OperationRoute. Снимает с очереди еще не взятую в работу
// операцию; для уже выполняющейся вернется 404.
func (o *OperationsHandler) Cancel(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	id, parseErr := strconv.ParseInt(c.Param("id"), 10, 64)
	if parseErr != nil {
		c.AbortWithStatus(http.StatusUnprocessableEntity)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	if err := o.svs.Cancel(reqCtx, id, currentUserID); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.AbortWithStatus(http.StatusNoContent)
}
