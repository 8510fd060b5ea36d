// Package concurrency — утилиты для безопасного конкурентного исполнения.
// Ферма состоит из долгоживущих горутин-раннеров, которые большую часть времени
// спят между действиями; все паузы обязаны прерываться отменой контекста,
// иначе shutdown будет ждать часы.
package concurrency

import (
	"context"
	"time"
)

// Sleep спит d или до отмены контекста, смотря что наступит раньше.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
