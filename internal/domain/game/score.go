package game

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
)

// Константы формулы счёта. Подобраны под серверную проверку выигрыша:
// любое отклонение — и сервер отклонит отчёт.
const (
	scoreBase    = 45
	scoreDivisor = 54
	scoreOffset  = 9
)

// Score вычисляет счёт выигранного раунда. Целая часть зависит только от
// длительности игры, дробная — от идентификатора раунда.
func Score(secondsPlayed int, gameID string) float64 {
	timeBonus := 1200 - 10*secondsPlayed
	if timeBonus < 0 {
		timeBonus = 0
	}
	raw := float64(10*scoreBase+timeBonus+2000) * (1 + float64(scoreOffset)/float64(scoreDivisor)) / 10
	return math.Floor(raw) + charValue(gameID)
}

// charValue — сумма кодовых точек строки, отмасштабированная в дробную часть.
func charValue(s string) float64 {
	var sum int
	for _, r := range s {
		sum += int(r)
	}
	return float64(sum) / 100000
}

// Signature считает HMAC-SHA256-подпись отчёта о выигрыше. Формат ключа и
// сообщения должен воспроизводиться байт в байт, hex-дайджест в нижнем регистре.
func Signature(userID, gameID string, elapsedMs int64, secondsPlayed int) string {
	key := fmt.Sprintf("%sv$2f1-%s-%d", userID, gameID, elapsedMs)
	msg := fmt.Sprintf("%d-%s", secondsPlayed, gameID)

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
