package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fsdevblog/groph-balance/internal/domain"
	"github.com/gin-gonic/gin"
)

type BalanceHandler struct {
	svs BalanceServicer
}

func NewBalanceHandler(svs BalanceServicer) *BalanceHandler {
	return &BalanceHandler{
		svs: svs,
	}
}

type TransactionResponseItem struct {
	ID           int64   `json:"id"`
	Type         string  `json:"type"`
	Amount       float64 `json:"amount"`
	Description  string  `json:"description"`
	BalanceAfter float64 `json:"balance_after"`
	CreatedAt    string  `json:"created_at"`
}

type BalanceResponse struct {
	Balance      float64                   `json:"balance"`
	Transactions []TransactionResponseItem `json:"transactions"`
}

// Index GET RouteGroup + BalanceRoute. Текущий баланс и последние операции, через кэш.
func (b *BalanceHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	value, err := b.svs.GetBalanceWithHistory(reqCtx, currentUserID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			_ = c.AbortWithError(http.StatusNotFound, err).SetType(gin.ErrorTypePrivate)
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, &BalanceResponse{
		Balance:      value.Balance.InexactFloat64(),
		Transactions: transactionItems(value.Transactions),
	})
}

func transactionItems(transactions []domain.Transaction) []TransactionResponseItem {
	items := make([]TransactionResponseItem, len(transactions))
	for i, transaction := range transactions {
		items[i] = TransactionResponseItem{
			ID:           transaction.ID,
			Type:         string(transaction.Type),
			Amount:       transaction.Amount.InexactFloat64(),
			Description:  transaction.Description,
			BalanceAfter: transaction.BalanceAfter.InexactFloat64(),
			CreatedAt:    transaction.CreatedAt.Format(time.RFC3339),
		}
	}
	return items
}
