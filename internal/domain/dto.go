package domain

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

// ValidTransactionType проверяет значение на соответствие закрытому перечислению типов.
// Неизвестные значения отсекаются на границе валидации, до обращения к хранилищу.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TransactionTypeCredit, TransactionTypeDebit:
		return true
	default:
		return false
	}
}

type OperationStatus string

const (
	OperationStatusNew        OperationStatus = "NEW"
	OperationStatusProcessing OperationStatus = "PROCESSING"
	OperationStatusRetry      OperationStatus = "RETRY"
	OperationStatusDone       OperationStatus = "DONE"
	OperationStatusFailed     OperationStatus = "FAILED"
	OperationStatusDead       OperationStatus = "DEAD"
)
