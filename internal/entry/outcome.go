package entry

import "fmt"

// Verdict is the tagged result of checking a qualifying answer.
type Verdict string

const (
	// Correct means the answer matched and tickets may be requested.
	Correct Verdict = "correct"
	// Incorrect is a normal negative result. The customer simply picks again.
	Incorrect Verdict = "incorrect"
	// CheckFailed means the answer could not be checked at all.
	CheckFailed Verdict = "check_failed"
)

// Outcome carries the verdict and, for CheckFailed, the transport cause.
type Outcome struct {
	Verdict Verdict
	Cause   error
}

// IsCorrect reports whether the entry may proceed.
func (o Outcome) IsCorrect() bool { return o.Verdict == Correct }

func (o Outcome) String() string {
	if o.Verdict == CheckFailed && o.Cause != nil {
		return fmt.Sprintf("%s: %v", o.Verdict, o.Cause)
	}
	return string(o.Verdict)
}

func verdictFor(correct bool) Verdict {
	if correct {
		return Correct
	}
	return Incorrect
}
