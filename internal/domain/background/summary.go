package background

// Attention is the overall indicator shown for the set of tracked items.
type Attention string

const (
	AttentionNone         Attention = "NONE"
	AttentionWorking      Attention = "WORKING"
	AttentionReady        Attention = "READY"
	AttentionReadyWorking Attention = "READY_WORKING"
	AttentionFail         Attention = "FAIL"
)

// Summary counts tracked items by what they need from the user.
type Summary struct {
	Working   int       `json:"working"`
	Ready     int       `json:"ready"`
	Failed    int       `json:"failed"`
	Attention Attention `json:"attention"`
}

// Summarize folds the items into a Summary. An item is ready when it has a
// successful sub-job whose completion handler has not run. Failures take
// precedence over everything else.
func Summarize(items []*TrackedItem) Summary {
	var s Summary
	for _, it := range items {
		switch st := it.State(); {
		case st.IsFail():
			s.Failed++
		case st.IsActive():
			s.Working++
			if len(it.PendingActivations()) > 0 {
				s.Ready++
			}
		case len(it.PendingActivations()) > 0:
			s.Ready++
		}
	}

	switch {
	case s.Failed > 0:
		s.Attention = AttentionFail
	case s.Ready > 0 && s.Working > 0:
		s.Attention = AttentionReadyWorking
	case s.Ready > 0:
		s.Attention = AttentionReady
	case s.Working > 0:
		s.Attention = AttentionWorking
	default:
		s.Attention = AttentionNone
	}
	return s
}
