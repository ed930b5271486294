package api

import (
	"context"
	"net/http"

	"github.com/fsdevblog/groph-balance/internal/repository/repoargs"
	"github.com/gin-gonic/gin"
)

type TransactionsHandler struct {
	svs BalanceServicer
}

func NewTransactionsHandler(svs BalanceServicer) *TransactionsHandler {
	return &TransactionsHandler{
		svs: svs,
	}
}

type TransactionsIndexParams struct {
	Search    string `binding:"omitempty,max=255"                form:"search"`
	Sort      string `binding:"omitempty,oneof=created_at amount" form:"sort"`
	Direction string `binding:"omitempty,oneof=asc desc"          form:"direction"`
	Page      uint   `binding:"omitempty,min=1"                   form:"page"`
}

type TransactionsIndexResponse struct {
	Total int64                     `json:"total"`
	Items []TransactionResponseItem `json:"items"`
}

// Index GET RouteGroup + TransactionsRoute. История операций с поиском по описанию,
// сортировкой и постраничным выводом.
func (t *TransactionsHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params TransactionsIndexParams
	if bindErr := c.ShouldBindQuery(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusUnprocessableEntity, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	transactions, total, err := t.svs.SearchTransactions(reqCtx, repoargs.TransactionSearch{
		UserID:    currentUserID,
		Search:    params.Search,
		Sort:      repoargs.TransactionSortField(params.Sort),
		Direction: repoargs.SortDirection(params.Direction),
		Page:      params.Page,
	})
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, &TransactionsIndexResponse{
		Total: total,
		Items: transactionItems(transactions),
	})
}
