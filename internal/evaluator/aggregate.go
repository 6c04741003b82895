package evaluator

// aggregate folds check outcomes into a verdict. The rules, applied in
// order:
//
//  1. The verdict is valid exactly when no check failed.
//  2. The base risk level is the highest severity among fail and warn
//     outcomes, or "none" when there are neither.
//  3. Three or more warnings escalate a risk level at or below medium by
//     one step: many small signals together deserve a closer look.
//  4. An invalid verdict never reports a risk level below high.
//  5. The reported level is never below "low": "none" is an internal
//     severity, not a risk level the caller sees.
//  6. Errors and warnings list the failing and warning messages in check
//     order, so the same inputs always produce the same verdict bytes.
func aggregate(outcomes []Outcome) *Verdict {
	valid := true
	base := SeverityNone
	warnCount := 0
	errs := []string{}
	warns := []string{}

	for _, o := range outcomes {
		switch o.Status {
		case StatusFail:
			valid = false
			base = maxSeverity(base, o.Severity)
			errs = append(errs, o.Message)
		case StatusWarn:
			warnCount++
			base = maxSeverity(base, o.Severity)
			warns = append(warns, o.Message)
		}
	}

	risk := base
	if warnCount >= 3 && risk.Rank() <= SeverityMedium.Rank() {
		risk = escalate(risk)
	}
	if !valid && risk.Rank() < SeverityHigh.Rank() {
		risk = SeverityHigh
	}
	if risk == SeverityNone {
		risk = SeverityLow
	}

	return &Verdict{
		Valid:     valid,
		RiskLevel: string(risk),
		Errors:    errs,
		Warnings:  warns,
		Checks:    outcomes,
	}
}

// timeoutVerdict is the one verdict shape that is invalid without a failed
// check: the overall deadline expired, so the risk is simply unknown.
func timeoutVerdict(completed []Outcome) *Verdict {
	outcomes := make([]Outcome, 0, len(gateChecks)+len(advisoryChecks))
	outcomes = append(outcomes, completed...)
	for _, id := range allCheckIDs()[len(completed):] {
		outcomes = append(outcomes, skip(id, "evaluation timed out"))
	}
	return &Verdict{
		Valid:     false,
		RiskLevel: RiskUnknown,
		Errors:    []string{"validation timed out"},
		Warnings:  []string{},
		Checks:    outcomes,
	}
}

func allCheckIDs() []string {
	ids := make([]string, 0, len(gateChecks)+len(advisoryChecks))
	ids = append(ids, gateChecks...)
	ids = append(ids, advisoryChecks...)
	return ids
}
