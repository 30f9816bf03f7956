package session

// State is the lifecycle state of the controller.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateStopping State = "stopping"
)

// CanStop reports whether the stop command is actionable in s.
func (s State) CanStop() bool {
	return s == StateActive
}

// subscription forwards one peer's callbacks to the controller. Callbacks from a peer
// whose session has ended carry a stale generation and are dropped.
type subscription struct {
	c   *Controller
	gen uint64
}

func (s *subscription) OnChannelOpen()                 { s.c.channelOpened(s.gen) }
func (s *subscription) OnChannelMessage(data []byte)   { s.c.message(s.gen, data) }
func (s *subscription) OnChannelClose()                { s.c.channelClosed(s.gen) }
func (s *subscription) OnConnectionState(state string) { s.c.connectionState(s.gen, state) }
