package screening

// Severity is the label of a PHQ-9 score band.
type Severity string

const (
	SeverityMinimal          Severity = "minimal or no depression"
	SeverityMild             Severity = "mild depression symptoms"
	SeverityModerate         Severity = "moderate depression symptoms"
	SeverityModeratelySevere Severity = "moderately severe depression symptoms"
	SeveritySevere           Severity = "severe depression symptoms"
)

// band upper bounds are inclusive.
var bands = []struct {
	upper    int
	severity Severity
}{
	{4, SeverityMinimal},
	{9, SeverityMild},
	{14, SeverityModerate},
	{19, SeverityModeratelySevere},
}

// Classify maps a total score to its band. Scores above 19 are severe.
func Classify(score int) Severity {
	for _, b := range bands {
		if score <= b.upper {
			return b.severity
		}
	}
	return SeveritySevere
}

// Result is a scored screening.
type Result struct {
	Score    int
	Severity Severity
}

// Score totals the answers and bands the result.
func Score(answers []string) Result {
	total := Total(answers)
	return Result{Score: total, Severity: Classify(total)}
}
