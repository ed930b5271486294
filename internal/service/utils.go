package service

import (
	"math/rand/v2"
	"time"
)

// backoffDelay считает задержку перед повтором операции: экспонента от номера попытки
// с разбросом +-15%, чтобы перепоставленные операции не били в базу одновременно.
func backoffDelay(attempt uint) time.Duration {
	delay := retryBackoffBase << attempt
	if delay > retryBackoffMax || delay <= 0 {
		delay = retryBackoffMax
	}
	return time.Duration(jitter(float64(delay), 0.15, 0.15))
}

// jitter возвращает value со случайным отклонением в пределах [1-minPercent, 1+maxPercent].
// Например, при minPercent=0.15, maxPercent=0.15 получим диапазон [0.85*value, 1.15*value].
//
// minPercent и maxPercent должны быть >= 0 (0.1 = 10%). Если указано иное, значения
// выставятся в 0.15.
func jitter(value, minPercent, maxPercent float64) float64 {
	if minPercent < 0 || maxPercent < 0 {
		minPercent = 0.15
		maxPercent = 0.15
	}
	factor := 1 - minPercent + rand.Float64()*(minPercent+maxPercent) // nolint:gosec
	return value * factor
}
