package game

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/f11game/f11api/models"
)

const (
	// TimeBasedQuestionCount is the size of the shared question stream in
	// time-based mode; far more than any player can clear within the duration.
	TimeBasedQuestionCount = 50

	// FastestFirstMaxQuestions is the quota a player must exhaust to win a
	// fastest-first race.
	FastestFirstMaxQuestions = 30

	// DefaultDuration is the time-based game length in milliseconds.
	DefaultDuration = 30000
)

// RandomNumber picks an operand for the given digit count. One digit draws
// from [1,9], two from [10,99]. Three digits uses a widened floor/ceiling of
// 100/900, giving [100,999], so a three-digit question never underflows into
// two-digit territory.
func RandomNumber(rng *rand.Rand, digits int) int {
	var floor, ceiling int
	switch digits {
	case 3:
		floor, ceiling = 100, 900
	case 2:
		floor, ceiling = 10, 90
	default:
		floor, ceiling = 1, 9
	}
	return floor + rng.Intn(ceiling)
}

// RandomOperator picks uniformly from the configured operator set.
func RandomOperator(rng *rand.Rand, operators []models.Operator) models.Operator {
	return operators[rng.Intn(len(operators))]
}

// GenerateQuestionSet produces qty independent questions. There is no
// uniqueness constraint between questions; duplicates are fine. The result is
// fully determined by rng, so a seeded source reproduces the same set.
func GenerateQuestionSet(rng *rand.Rand, qty, digits int, operators []models.Operator) []models.Question {
	questions := make([]models.Question, qty)
	for i := range questions {
		questions[i] = models.Question{
			Number1:  RandomNumber(rng, digits),
			Number2:  RandomNumber(rng, digits),
			Operator: RandomOperator(rng, operators),
		}
	}
	return questions
}

// QuestionCount returns how many questions a session of the given mode deals.
func QuestionCount(mode models.Mode) int {
	if mode == models.ModeFastestFirst {
		return FastestFirstMaxQuestions
	}
	return TimeBasedQuestionCount
}

// CheckAnswer reports whether the typed input answers the question.
//
// Add, subtract and multiply compare the parsed input numerically against the
// integer result, so "12" and "12.0" both answer 7+5. Division is different:
// the expected answer is the quotient formatted to exactly two decimal places
// and the raw input must match it character for character. 7 divided by 2
// accepts "3.50" and rejects "3.5".
func CheckAnswer(q models.Question, input string) bool {
	input = strings.TrimSpace(input)
	if q.Operator == models.OperatorDivide {
		expected := fmt.Sprintf("%.2f", float64(q.Number1)/float64(q.Number2))
		return input == expected
	}

	answer, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return false
	}

	var result int
	switch q.Operator {
	case models.OperatorAdd:
		result = q.Number1 + q.Number2
	case models.OperatorSubtract:
		result = q.Number1 - q.Number2
	case models.OperatorMultiply:
		result = q.Number1 * q.Number2
	}
	return answer == float64(result)
}

// Symbol maps an operator to its display glyph.
func Symbol(op models.Operator) string {
	switch op {
	case models.OperatorAdd:
		return "+"
	case models.OperatorSubtract:
		return "-"
	case models.OperatorMultiply:
		return "×"
	default:
		return "÷"
	}
}

// Difficulty scores a configuration between 0 and 1. Digits weigh double,
// each operator adds one, and multiplication and division add a premium of 3
// and 5 on top.
func Difficulty(digits int, operators []models.Operator) float64 {
	const maxScore = 18
	weight := digits * 2
	weight += len(operators)
	for _, op := range operators {
		switch op {
		case models.OperatorMultiply:
			weight += 3
		case models.OperatorDivide:
			weight += 5
		}
	}
	return float64(weight) / maxScore
}
