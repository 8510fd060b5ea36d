// Package shared — небольшие общие утилиты без внешних зависимостей.
// Содержит генераторы псевдослучайных значений для пауз и игровых решений.
// Криптостойкость нигде не требуется, поэтому используется math/rand/v2.
package shared

import (
	"math/rand/v2"
	"time"
)

// Random возвращает псевдослучайное целое в диапазоне [fromMin, toMax] включительно.
// Если fromMin >= toMax, возвращается fromMin.
func Random(fromMin, toMax int) int {
	if fromMin >= toMax {
		return fromMin
	}
	// Смещение на +fromMin после IntN(toMax-fromMin+1) даёт включительный верхний предел.
	return rand.IntN(toMax-fromMin+1) + fromMin // #nosec G404
}

// RandomDuration возвращает случайную длительность в секундах из [fromMin, toMax].
// Удобно для «человеческих» пауз между сетевыми действиями.
func RandomDuration(fromMin, toMax int) time.Duration {
	return time.Duration(Random(fromMin, toMax)) * time.Second
}

// Roll бросает кубик [1,100]. Используется для вероятностных развилок
// (исход раунда, джиттер расписания).
func Roll() int {
	return Random(1, 100)
}
