package chart

import (
	"errors"
	"testing"
)

var allStatuses = []Status{
	StatusActive, StatusVerifiedReady, StatusNeedsReverification, StatusDeliveredLocked, StatusArchived,
}

var allActions = []Action{ActionApprove, ActionReturn, ActionDeliver, ActionReopen, ActionArchive}

func TestNext_Table(t *testing.T) {
	allowed := map[Action]map[Status]Status{
		ActionApprove: {StatusActive: StatusVerifiedReady, StatusNeedsReverification: StatusVerifiedReady},
		ActionReturn:  {StatusActive: StatusNeedsReverification, StatusVerifiedReady: StatusNeedsReverification},
		ActionDeliver: {StatusVerifiedReady: StatusDeliveredLocked},
		ActionReopen:  {StatusDeliveredLocked: StatusNeedsReverification},
		ActionArchive: {
			StatusActive:              StatusArchived,
			StatusVerifiedReady:       StatusArchived,
			StatusNeedsReverification: StatusArchived,
			StatusDeliveredLocked:     StatusArchived,
		},
	}

	for _, action := range allActions {
		for _, from := range allStatuses {
			got, err := Next(action, from)
			want, ok := allowed[action][from]
			if ok {
				if err != nil || got != want {
					t.Errorf("%s from %s: got (%s, %v), want %s", action, from, got, err, want)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s from %s: expected ErrInvalidTransition, got (%s, %v)", action, from, got, err)
			}
		}
	}
}

func TestNext_ArchivedIsTerminal(t *testing.T) {
	for _, action := range allActions {
		if _, err := Next(action, StatusArchived); err == nil {
			t.Errorf("%s should not leave archived", action)
		}
	}
}

func TestNext_UnknownAction(t *testing.T) {
	_, err := Next("publish", StatusActive)
	var terr *TransitionError
	if !errors.As(err, &terr) || terr.Action != "publish" {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if Action("publish").Valid() {
		t.Error("unknown action reported valid")
	}
}

func TestRequiresReason(t *testing.T) {
	want := map[Action]bool{
		ActionApprove: false,
		ActionReturn:  true,
		ActionDeliver: false,
		ActionReopen:  true,
		ActionArchive: false,
	}
	for action, required := range want {
		if RequiresReason(action) != required {
			t.Errorf("RequiresReason(%s) = %v, want %v", action, !required, required)
		}
	}
}

func TestStatusLocked(t *testing.T) {
	for _, s := range allStatuses {
		want := s == StatusDeliveredLocked || s == StatusArchived
		if s.Locked() != want {
			t.Errorf("%s.Locked() = %v, want %v", s, !want, want)
		}
	}
}
