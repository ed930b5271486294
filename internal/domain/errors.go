package domain

import (
	"errors"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrPasswordMissMatch = errors.New("password mismatch")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrUnknown           = errors.New("unknown error")

	// ErrInsufficientFunds - бизнес-отказ: дебет увел бы баланс в минус. Не системный сбой,
	// атомарная единица откатывается целиком, повторы бессмысленны.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrValidation - некорректные входные данные операции. Возвращается до обращения
	// к хранилищу и никогда не ретраится.
	ErrValidation = errors.New("validation error")
)

// TerminalError сообщает, имеет ли смысл повторять операцию. Ошибки валидации,
// нехватки средств и отсутствия записи повтором не лечатся; все прочее считаем
// сбоем хранилища и отдаем на откуп политике ретраев диспетчера.
func TerminalError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrRecordNotFound)
}
