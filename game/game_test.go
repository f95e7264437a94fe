package game

import (
	"math/rand"
	"testing"

	"github.com/f11game/f11api/models"
)

func TestRandomNumberRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	tests := []struct {
		name   string
		digits int
		min    int
		max    int
	}{
		{name: "one digit", digits: 1, min: 1, max: 9},
		{name: "two digits", digits: 2, min: 10, max: 99},
		{name: "three digits", digits: 3, min: 100, max: 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 1000; i++ {
				n := RandomNumber(rng, tt.digits)
				if n < tt.min || n > tt.max {
					t.Fatalf("RandomNumber(%d) = %d, want within [%d,%d]", tt.digits, n, tt.min, tt.max)
				}
			}
		})
	}
}

func TestGenerateQuestionSet(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	operators := []models.Operator{models.OperatorAdd, models.OperatorDivide}

	questions := GenerateQuestionSet(rng, 30, 2, operators)
	if len(questions) != 30 {
		t.Fatalf("got %d questions, want 30", len(questions))
	}

	allowed := map[models.Operator]bool{}
	for _, op := range operators {
		allowed[op] = true
	}
	for i, q := range questions {
		if !allowed[q.Operator] {
			t.Errorf("question %d has operator %q outside configured set", i, q.Operator)
		}
		if q.Number1 < 10 || q.Number1 > 99 || q.Number2 < 10 || q.Number2 > 99 {
			t.Errorf("question %d operands %d,%d outside two-digit range", i, q.Number1, q.Number2)
		}
	}
}

func TestGenerateQuestionSetDeterministic(t *testing.T) {
	operators := []models.Operator{models.OperatorAdd, models.OperatorSubtract, models.OperatorMultiply}

	a := GenerateQuestionSet(rand.New(rand.NewSource(7)), 50, 3, operators)
	b := GenerateQuestionSet(rand.New(rand.NewSource(7)), 50, 3, operators)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("question %d differs across identically seeded sources: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestCheckAnswer(t *testing.T) {
	tests := []struct {
		name    string
		q       models.Question
		input   string
		correct bool
	}{
		{name: "addition", q: models.Question{Number1: 7, Number2: 5, Operator: models.OperatorAdd}, input: "12", correct: true},
		{name: "addition wrong", q: models.Question{Number1: 7, Number2: 5, Operator: models.OperatorAdd}, input: "13", correct: false},
		{name: "addition decimal form", q: models.Question{Number1: 7, Number2: 5, Operator: models.OperatorAdd}, input: "12.0", correct: true},
		{name: "subtraction negative", q: models.Question{Number1: 3, Number2: 9, Operator: models.OperatorSubtract}, input: "-6", correct: true},
		{name: "multiplication", q: models.Question{Number1: 12, Number2: 12, Operator: models.OperatorMultiply}, input: "144", correct: true},
		{name: "division two decimals", q: models.Question{Number1: 7, Number2: 2, Operator: models.OperatorDivide}, input: "3.50", correct: true},
		{name: "division short form rejected", q: models.Question{Number1: 7, Number2: 2, Operator: models.OperatorDivide}, input: "3.5", correct: false},
		{name: "division exact", q: models.Question{Number1: 8, Number2: 2, Operator: models.OperatorDivide}, input: "4.00", correct: true},
		{name: "garbage input", q: models.Question{Number1: 2, Number2: 2, Operator: models.OperatorAdd}, input: "four", correct: false},
		{name: "padded input", q: models.Question{Number1: 2, Number2: 2, Operator: models.OperatorAdd}, input: " 4 ", correct: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckAnswer(tt.q, tt.input); got != tt.correct {
				t.Errorf("CheckAnswer(%+v, %q) = %v, want %v", tt.q, tt.input, got, tt.correct)
			}
		})
	}
}

func TestDifficulty(t *testing.T) {
	easy := Difficulty(1, []models.Operator{models.OperatorAdd})
	hard := Difficulty(3, []models.Operator{
		models.OperatorAdd, models.OperatorSubtract, models.OperatorMultiply, models.OperatorDivide,
	})

	if easy >= hard {
		t.Errorf("easy config scored %v, hard scored %v; want easy < hard", easy, hard)
	}
	if hard != 1.0 {
		t.Errorf("hardest config = %v, want 1.0", hard)
	}
	if easy != 3.0/18 {
		t.Errorf("easiest config = %v, want %v", easy, 3.0/18)
	}
}
