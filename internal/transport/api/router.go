package api

import (
	"time"

	"github.com/fsdevblog/groph-balance/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	DefaultServiceTimeout = 3 * time.Second
)

const (
	RouteGroup        = "/api"
	RegisterRoute     = "/user/register"
	LoginRoute        = "/user/login"
	BalanceRoute      = "/user/balance"
	TransactionsRoute = "/user/transactions"
	OperationsRoute   = "/user/balance/operations"
	OperationRoute    = "/user/balance/operations/:id"
)

type RouterArgs struct {
	Logger           *logrus.Logger
	UserService      UserServicer
	BalanceService   BalanceServicer
	OperationService OperationServicer
	JWTSecretKey     []byte
}

func New(args RouterArgs) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger))
	}
	r.Use(middlewares.Errors())

	authHandler := NewAuthHandler(args.UserService)
	balanceHandler := NewBalanceHandler(args.BalanceService)
	transactionsHandler := NewTransactionsHandler(args.BalanceService)
	operationsHandler := NewOperationsHandler(args.OperationService)

	api := r.Group(RouteGroup)

	api.POST(RegisterRoute, middlewares.NonAuthRequired(args.JWTSecretKey), authHandler.Register)
	api.POST(LoginRoute, middlewares.NonAuthRequired(args.JWTSecretKey), authHandler.Login)

	api.Use(middlewares.AuthRequired(args.JWTSecretKey))
	// ниже все роуты группы требуют авторизованного пользователя.
	api.GET(BalanceRoute, balanceHandler.Index)
	api.GET(TransactionsRoute, transactionsHandler.Index)

	api.POST(OperationsRoute, operationsHandler.Create)
	api.DELETE(OperationRoute, operationsHandler.Cancel)
	return r
}
