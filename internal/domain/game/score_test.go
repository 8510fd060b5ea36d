package game

import (
	"math"
	"testing"
)

func TestScoreKnownValue(t *testing.T) {
	t.Parallel()

	// 60 секунд: 10*45 + (1200-600) + 2000 = 3050; 3050*(63/54)/10 → floor 355.
	// "abc123": 97+98+99+49+50+51 = 444 → дробная часть 0.00444.
	got := Score(60, "abc123")
	if math.Abs(got-355.00444) > 1e-9 {
		t.Fatalf("Score(60, abc123) = %.5f, want 355.00444", got)
	}
}

func TestScoreTimeBonusClampedAtZero(t *testing.T) {
	t.Parallel()

	// После 120 секунд бонус за время обнуляется и счёт перестаёт падать.
	if Score(120, "x") != Score(500, "x") {
		t.Fatalf("Score must plateau after 120s: %v vs %v", Score(120, "x"), Score(500, "x"))
	}
}

func TestScoreFractionDependsOnGameID(t *testing.T) {
	t.Parallel()

	a := Score(60, "aaaa")
	b := Score(60, "aaab")
	if math.Floor(a) != math.Floor(b) {
		t.Fatalf("integer part must not depend on gameId: %v vs %v", a, b)
	}
	if a == b {
		t.Fatal("fraction must differ for different gameIds")
	}
}

func TestSignatureDeterministic(t *testing.T) {
	t.Parallel()

	s1 := Signature("123", "game-1", 61500, 60)
	s2 := Signature("123", "game-1", 61500, 60)
	if s1 != s2 {
		t.Fatal("signature must be deterministic")
	}
	if len(s1) != 64 {
		t.Fatalf("hex sha256 digest must be 64 chars, got %d", len(s1))
	}
}

func TestSignatureSensitiveToEveryInput(t *testing.T) {
	t.Parallel()

	base := Signature("123", "game-1", 61500, 60)

	variants := []string{
		Signature("124", "game-1", 61500, 60),
		Signature("123", "game-2", 61500, 60),
		Signature("123", "game-1", 61501, 60),
		Signature("123", "game-1", 61500, 61),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d must change the signature", i)
		}
	}
}
