package chart

type Action string

const (
	ActionApprove Action = "approve"
	ActionReturn  Action = "return"
	ActionDeliver Action = "deliver"
	ActionReopen  Action = "reopen"
	ActionArchive Action = "archive"
)

type rule struct {
	from           []Status
	to             Status
	reasonRequired bool
	// awaitingReview, when set, is written to awaiting_clinician_review.
	awaitingReview *bool
}

var (
	reviewPending = true
	reviewDone    = false
)

// transitions is the complete chart lifecycle. Pairs not listed are
// rejected; archived has no outgoing edge.
var transitions = map[Action]rule{
	ActionApprove: {
		from:           []Status{StatusActive, StatusNeedsReverification},
		to:             StatusVerifiedReady,
		awaitingReview: &reviewDone,
	},
	ActionReturn: {
		from:           []Status{StatusActive, StatusVerifiedReady},
		to:             StatusNeedsReverification,
		reasonRequired: true,
		awaitingReview: &reviewPending,
	},
	ActionDeliver: {
		from: []Status{StatusVerifiedReady},
		to:   StatusDeliveredLocked,
	},
	ActionReopen: {
		from:           []Status{StatusDeliveredLocked},
		to:             StatusNeedsReverification,
		reasonRequired: true,
	},
	ActionArchive: {
		from: []Status{StatusActive, StatusVerifiedReady, StatusNeedsReverification, StatusDeliveredLocked},
		to:   StatusArchived,
	},
}

// Next returns the status a chart in from moves to under action.
func Next(action Action, from Status) (Status, error) {
	r, ok := transitions[action]
	if !ok {
		return "", &TransitionError{Action: action, From: from}
	}
	for _, s := range r.from {
		if s == from {
			return r.to, nil
		}
	}
	return "", &TransitionError{Action: action, From: from}
}

func RequiresReason(action Action) bool {
	return transitions[action].reasonRequired
}

func (a Action) Valid() bool {
	_, ok := transitions[a]
	return ok
}
