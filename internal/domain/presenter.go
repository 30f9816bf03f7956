package domain

// ToastLevel grades a transient notification.
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

// FormField is one editable entry of the verification popup.
type FormField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	Required bool   `json:"required"`
}

// VerificationForm is what the UI shows while a verify call is outstanding.
type VerificationForm struct {
	CallID string      `json:"call_id,omitempty"`
	Fields []FormField `json:"fields"`
}

// Presenter renders session state to the user.
type Presenter interface {
	Status(text string)
	Toast(level ToastLevel, text string)
	StateChanged(state string, canStop bool)
	TranscriptChanged(turns []Turn)
	ShowVerification(form VerificationForm)
	HideVerification()
}
