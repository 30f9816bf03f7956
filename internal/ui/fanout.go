package ui

import "formvoice/native/internal/domain"

// Fanout forwards every presenter call to each of its presenters in order.
type Fanout []domain.Presenter

// Status forwards to every presenter.
func (f Fanout) Status(text string) {
	for _, p := range f {
		p.Status(text)
	}
}

// Toast forwards to every presenter.
func (f Fanout) Toast(level domain.ToastLevel, text string) {
	for _, p := range f {
		p.Toast(level, text)
	}
}

// StateChanged forwards to every presenter.
func (f Fanout) StateChanged(state string, canStop bool) {
	for _, p := range f {
		p.StateChanged(state, canStop)
	}
}

// TranscriptChanged forwards to every presenter.
func (f Fanout) TranscriptChanged(turns []domain.Turn) {
	for _, p := range f {
		p.TranscriptChanged(turns)
	}
}

// ShowVerification forwards to every presenter.
func (f Fanout) ShowVerification(form domain.VerificationForm) {
	for _, p := range f {
		p.ShowVerification(form)
	}
}

// HideVerification forwards to every presenter.
func (f Fanout) HideVerification() {
	for _, p := range f {
		p.HideVerification()
	}
}
