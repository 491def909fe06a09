// Package screening holds the PHQ-9 question set, answer scoring and
// severity banding. Everything here is immutable and shared.
package screening

import "github.com/PabloGalante/farum-triage/internal/domain"

var questions = [domain.QuestionCount]string{
	"Over the last 2 weeks, how often have you been bothered by little interest or pleasure in doing things?",
	"Over the last 2 weeks, how often have you felt down, depressed, or hopeless?",
	"Over the last 2 weeks, how often have you had trouble falling or staying asleep, or sleeping too much?",
	"Over the last 2 weeks, how often have you felt tired or had little energy?",
	"Over the last 2 weeks, how often have you had poor appetite or overeating?",
	"Over the last 2 weeks, how often have you felt bad about yourself — or that you are a failure or have let yourself or your family down?",
	"Over the last 2 weeks, how often have you had trouble concentrating on things, such as reading the newspaper or watching television?",
	"Over the last 2 weeks, how often have you been moving or speaking so slowly that other people could have noticed? Or the opposite — being so fidgety or restless that you have been moving a lot more than usual?",
	"Over the last 2 weeks, how often have you had thoughts that you would be better off dead or of hurting yourself in some way?",
}

// Question returns the question at step. ok is false outside 0..QuestionCount-1.
func Question(step int) (q string, ok bool) {
	if step < 0 || step >= len(questions) {
		return "", false
	}
	return questions[step], true
}

// Questions returns a copy of the ordered question set.
func Questions() []string {
	return append([]string(nil), questions[:]...)
}

// Canonical answer phrases, in increasing frequency.
const (
	AnswerNotAtAll       = "not at all"
	AnswerSeveralDays    = "several days"
	AnswerMoreThanHalf   = "more than half the days"
	AnswerNearlyEveryDay = "nearly every day"
	MaxScore             = domain.QuestionCount * 3
)

var scoreMap = map[string]int{
	AnswerNotAtAll:       0,
	AnswerSeveralDays:    1,
	AnswerMoreThanHalf:   2,
	AnswerNearlyEveryDay: 3,
}

// Weight reports the score of a normalized answer.
func Weight(answer string) (int, bool) {
	w, ok := scoreMap[answer]
	return w, ok
}

// IsValidAnswer reports whether the normalized answer is one of the four phrases.
func IsValidAnswer(answer string) bool {
	_, ok := scoreMap[answer]
	return ok
}

// Total sums answer weights. Unknown answers count as 0.
func Total(answers []string) int {
	total := 0
	for _, a := range answers {
		total += scoreMap[a]
	}
	return total
}
