package service

// Мост для внешнего тестового пакета service_test к неэкспортируемым
// идентификаторам.
const (
	DefaultSearchPerPage = defaultSearchPerPage
	RetryBackoffMax      = retryBackoffMax
)

var BackoffDelay = backoffDelay
