package service

import (
	"fmt"

	"github.com/fsdevblog/groph-balance/pkg/uow"
	"github.com/sirupsen/logrus"
)

type AppServices struct {
	UserService      *UserService
	BalanceService   *BalanceService
	OperationService *OperationService
}

func Factory(unitOfWork uow.UOW, balanceCache BalanceCache, jwtSecret []byte, l *logrus.Logger) (*AppServices, error) {
	userService, userServiceErr := NewUserService(unitOfWork, jwtSecret)
	if userServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", userServiceErr.Error())
	}

	balanceService, balanceServiceErr := NewBalanceService(unitOfWork, balanceCache, l)
	if balanceServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", balanceServiceErr.Error())
	}

	operationService, operationServiceErr := NewOperationService(unitOfWork, balanceService, l)
	if operationServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", operationServiceErr.Error())
	}

	return &AppServices{
		UserService:      userService,
		BalanceService:   balanceService,
		OperationService: operationService,
	}, nil
}
