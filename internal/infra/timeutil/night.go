package timeutil

import "time"

// NightWindow — суточное окно тишины [FromHour:00, ToHour:00) по локальным часам.
// Внутри окна аккаунты не играют, имитируя сон владельца.
type NightWindow struct {
	FromHour int
	ToHour   int
}

// DefaultNightWindow — окно 00:00–08:00.
var DefaultNightWindow = NightWindow{FromHour: 0, ToHour: 8}

// Contains сообщает, попадает ли момент t в окно. Окна, пересекающие полночь
// (FromHour > ToHour), тоже поддерживаются.
func (w NightWindow) Contains(t time.Time) bool {
	h := t.Hour()
	if w.FromHour == w.ToHour {
		return false
	}
	if w.FromHour < w.ToHour {
		return h >= w.FromHour && h < w.ToHour
	}
	return h >= w.FromHour || h < w.ToHour
}

// UntilEnd возвращает длительность от t до ближайшего конца окна (ToHour:00).
// Предполагается, что t находится внутри окна; для момента вне окна результат —
// время до следующего наступления ToHour:00.
func (w NightWindow) UntilEnd(t time.Time) time.Duration {
	end := time.Date(t.Year(), t.Month(), t.Day(), w.ToHour, 0, 0, 0, t.Location())
	if !end.After(t) {
		end = end.Add(24 * time.Hour)
	}
	return end.Sub(t)
}
