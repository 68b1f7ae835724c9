package crosssection

// mergeTransitions folds runs of adjacent transitions with identical active
// paths into single transitions. Gap transitions end the current run but are
// not returned.
func mergeTransitions(transitions []Transition) []Transition {
	if len(transitions) == 0 {
		return nil
	}

	var merged []Transition

	acc := transitions[0]

	for _, next := range transitions[1:] {
		extended, ok := acc.Accumulate(next)
		if ok && !acc.IsGap() {
			acc = extended

			continue
		}

		merged = appendActive(merged, acc)
		acc = next
	}

	return appendActive(merged, acc)
}

func appendActive(merged []Transition, transition Transition) []Transition {
	if transition.IsGap() {
		return merged
	}

	return append(merged, transition)
}
