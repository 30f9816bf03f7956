package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"formvoice/native/internal/domain"
)

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	stateStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	assistantStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("135")).
			Padding(0, 1)

	toastStyles = map[domain.ToastLevel]lipgloss.Style{
		domain.ToastInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		domain.ToastSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		domain.ToastWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		domain.ToastError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

const consoleHelp = `commands:
  start                      start a session
  stop                       stop and save the transcript
  confirm key=value; ...     confirm the verification form
  skip                       dismiss the verification form
  quit                       exit`

// Terminal renders session state as styled lines and reads console commands.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[string]bool
	form    *domain.VerificationForm
}

// NewTerminal creates a terminal presenter writing to out.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out, printed: make(map[string]bool)}
}

// Status prints a dimmed status line.
func (t *Terminal) Status(text string) {
	t.println(statusStyle.Render("· " + text))
}

// Toast prints a notification styled by level.
func (t *Terminal) Toast(level domain.ToastLevel, text string) {
	style, ok := toastStyles[level]
	if !ok {
		style = toastStyles[domain.ToastInfo]
	}
	t.println(style.Render(fmt.Sprintf("[%s] %s", level, text)))
}

// StateChanged prints the lifecycle state.
func (t *Terminal) StateChanged(state string, canStop bool) {
	line := "state: " + state
	if canStop {
		line += " (type stop to end)"
	}
	t.println(stateStyle.Render(line))
}

// TranscriptChanged prints each finalized turn once.
func (t *Terminal) TranscriptChanged(turns []domain.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, turn := range turns {
		if turn.Streaming || turn.Content == "" {
			continue
		}
		key := string(turn.Role) + "\x00" + turn.Timestamp.String() + "\x00" + turn.Content
		if t.printed[key] {
			continue
		}
		t.printed[key] = true

		label := assistantStyle.Render("interviewer:")
		if turn.Role == domain.RoleUser {
			label = userStyle.Render("you:")
		}
		fmt.Fprintf(t.out, "%s %s\n", label, turn.Content)
	}
}

// ShowVerification prints the form and remembers its call id for confirm.
func (t *Terminal) ShowVerification(form domain.VerificationForm) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.form = &form

	var b strings.Builder
	b.WriteString(assistantStyle.Render("Please verify your details"))
	for _, f := range form.Fields {
		value := f.Value
		if value == "" {
			value = "(empty)"
		}
		marker := ""
		if f.Required {
			marker = "*"
		}
		fmt.Fprintf(&b, "\n%s%s = %s", f.Key, marker, value)
	}
	b.WriteString("\n\nconfirm key=value; key=value   or   skip")
	fmt.Fprintln(t.out, formStyle.Render(b.String()))
}

// HideVerification forgets the pending form.
func (t *Terminal) HideVerification() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.form = nil
}

// pendingForm returns the form currently shown, if any.
func (t *Terminal) pendingForm() *domain.VerificationForm {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.form
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, line)
}

// Run reads commands from in until EOF, quit or ctx is done. Every line counts as a
// user interaction.
func (t *Terminal) Run(ctx context.Context, in io.Reader, cmds domain.Commands) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	t.println(statusStyle.Render(consoleHelp))
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			cmds.Interact()
			if quit := t.execute(ctx, strings.TrimSpace(line), cmds); quit {
				return nil
			}
		}
	}
}

func (t *Terminal) execute(ctx context.Context, line string, cmds domain.Commands) bool {
	verb, rest, _ := strings.Cut(line, " ")
	var err error
	switch strings.ToLower(verb) {
	case "":
		return false
	case "quit", "exit":
		return true
	case "help":
		t.println(consoleHelp)
	case "start":
		err = cmds.StartSession(ctx)
	case "stop":
		err = cmds.StopSession(ctx)
	case "confirm":
		callID := ""
		if form := t.pendingForm(); form != nil {
			callID = form.CallID
		}
		err = cmds.ConfirmVerification(callID, ParseFields(rest))
	case "skip":
		err = cmds.SkipVerification()
	default:
		err = fmt.Errorf("unknown command %q (type help)", verb)
	}
	if err != nil && !errors.Is(err, domain.ErrEmptyVerification) {
		t.Toast(domain.ToastError, err.Error())
	}
	return false
}

// ParseFields parses "key=value; key=value" into a map. Entries without '=' are ignored.
func ParseFields(s string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields
}
