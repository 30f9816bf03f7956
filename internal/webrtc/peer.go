package webrtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	pion "github.com/pion/webrtc/v4"

	"formvoice/native/internal/domain"
)

// EventsChannelLabel is the side-channel label the realtime provider expects.
const EventsChannelLabel = "oai-events"

// Options configures a Peer.
type Options struct {
	AudioInput     string
	AudioOutput    string
	RequireGesture bool
	GatherTimeout  time.Duration
	SDPPolicy      string
	Gestures       domain.GestureSource
	// ICEServers is empty for the hosted provider; set in tests.
	ICEServers []pion.ICEServer
}

// Peer wraps a Pion PeerConnection, its local audio track and the events DataChannel.
// It is used for one session and then closed.
type Peer struct {
	handler  domain.PeerHandler
	exchange SDPExchanger
	opts     Options

	openCapture func(ctx context.Context, spec string) (Capture, error)
	player      *Player

	mu        sync.Mutex
	mediaCtx  context.Context
	stopMedia context.CancelFunc
	capture   Capture
	pc        *pion.PeerConnection
	dc        *pion.DataChannel
	closed    bool
}

// NewPeer creates a peer reporting transport events to handler.
func NewPeer(handler domain.PeerHandler, exchange SDPExchanger, opts Options) *Peer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Peer{
		handler:     handler,
		exchange:    exchange,
		opts:        opts,
		openCapture: OpenCapture,
		player:      NewPlayer(opts.AudioOutput, opts.RequireGesture, opts.Gestures),
		mediaCtx:    ctx,
		stopMedia:   cancel,
	}
}

// AcquireMedia opens the local audio input.
func (p *Peer) AcquireMedia(ctx context.Context) error {
	capture, err := p.openCapture(p.mediaCtx, p.opts.AudioInput)
	if err != nil {
		return fmt.Errorf("acquire audio input %q: %w", p.opts.AudioInput, err)
	}
	if err := ctx.Err(); err != nil {
		capture.Close()
		return err
	}

	p.mu.Lock()
	p.capture = capture
	p.mu.Unlock()
	log.Printf("[webrtc] local audio acquired: %s", p.opts.AudioInput)
	return nil
}

// Open creates the PeerConnection with an Opus send track and the events DataChannel.
// The channel must exist before the offer is created so it is part of the description.
func (p *Peer) Open() error {
	m := &pion.MediaEngine{}

	opusCodec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:    pion.MimeTypeOpus,
			ClockRate:   opusClockRate,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}
	if err := m.RegisterCodec(opusCodec, pion.RTPCodecTypeAudio); err != nil {
		return fmt.Errorf("register Opus: %w", err)
	}

	i := &interceptor.Registry{}
	responderFactory, err := nack.NewResponderInterceptor()
	if err != nil {
		return fmt.Errorf("create nack responder: %w", err)
	}
	i.Add(responderFactory)
	if err := pion.ConfigureRTCPReports(i); err != nil {
		return fmt.Errorf("configure rtcp reports: %w", err)
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	)

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers:   p.opts.ICEServers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	track, err := pion.NewTrackLocalStaticSample(opusCodec.RTPCodecCapability, "audio", "voicecall")
	if err != nil {
		pc.Close()
		return fmt.Errorf("create audio track: %w", err)
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		pc.Close()
		return fmt.Errorf("add audio track: %w", err)
	}
	go drainRTCP(sender)

	dc, err := pc.CreateDataChannel(EventsChannelLabel, nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("create data channel: %w", err)
	}

	dc.OnOpen(func() {
		log.Printf("[webrtc] data channel %q opened", EventsChannelLabel)
		p.handler.OnChannelOpen()
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		p.handler.OnChannelMessage(msg.Data)
	})
	dc.OnClose(func() {
		log.Printf("[webrtc] data channel closed")
		p.handler.OnChannelClose()
	})

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Printf("[webrtc] ICE connection state: %s", state.String())
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Printf("[webrtc] peer connection state: %s", state.String())
		p.handler.OnConnectionState(state.String())
	})
	pc.OnTrack(func(remote *pion.TrackRemote, _ *pion.RTPReceiver) {
		codec := remote.Codec()
		log.Printf("[webrtc] got track: kind=%s codec=%s pt=%d", remote.Kind(), codec.MimeType, codec.PayloadType)
		if remote.Kind() != pion.RTPCodecTypeAudio {
			return
		}
		p.player.Attach(remote)
	})

	p.mu.Lock()
	p.pc = pc
	p.dc = dc
	capture := p.capture
	p.mu.Unlock()

	if capture != nil {
		go func() {
			if err := capture.Pump(p.mediaCtx, track); err != nil {
				log.Printf("[media] capture stopped: %v", err)
			}
		}()
	}
	return nil
}

// Negotiate creates the offer, waits a bounded time for candidates, exchanges it with
// the provider using the ephemeral credential and applies the answer.
func (p *Peer) Negotiate(ctx context.Context, cred *domain.Credential) error {
	p.mu.Lock()
	pc := p.pc
	p.mu.Unlock()
	if pc == nil {
		return &domain.SetupError{Stage: "offer", Err: errors.New("peer connection not open")}
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return &domain.SetupError{Stage: "offer", Err: fmt.Errorf("create offer: %w", err)}
	}
	gathered := pion.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return &domain.SetupError{Stage: "offer", Err: fmt.Errorf("set local description: %w", err)}
	}
	log.Printf("[webrtc] local SDP offer set")

	AwaitGathering(gathered, p.opts.GatherTimeout)
	local := pc.LocalDescription()
	if local == nil {
		return &domain.SetupError{Stage: "offer", Err: errors.New("no local description")}
	}

	answer, err := p.exchange.Exchange(ctx, cred.Model, cred.ClientSecret.Value, local.SDP)
	if err != nil {
		return &domain.SetupError{Stage: "exchange", Err: err}
	}

	sanitized, err := SanitizeAnswer(answer, p.opts.SDPPolicy)
	if err != nil {
		log.Printf("[webrtc] answer sanitization failed, applying verbatim: %v", err)
		sanitized = answer
	}

	if err := pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sanitized}); err != nil {
		return &domain.SetupError{Stage: "answer", Err: fmt.Errorf("set remote description: %w", err)}
	}
	log.Printf("[webrtc] remote SDP answer set")
	return nil
}

// Send writes msg as a JSON text message on the events channel.
func (p *Peer) Send(msg any) error {
	p.mu.Lock()
	dc, closed := p.dc, p.closed
	p.mu.Unlock()
	if closed || !channelReady(dc) {
		return domain.ErrChannelUnavailable
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := dc.SendText(string(data)); err != nil {
		return fmt.Errorf("send event: %w", err)
	}
	return nil
}

// ChannelOpen reports whether the events channel is open. It reads the channel's ready
// state: pion runs OnOpen on its own goroutine, so messages can arrive first.
func (p *Peer) ChannelOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && channelReady(p.dc)
}

func channelReady(dc *pion.DataChannel) bool {
	return dc != nil && dc.ReadyState() == pion.DataChannelStateOpen
}

// Close tears the peer down: local media, playback, DataChannel, senders and the
// PeerConnection. Each step runs even if an earlier one fails; Close is idempotent.
func (p *Peer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	capture, pc, dc := p.capture, p.pc, p.dc
	p.mu.Unlock()

	var errs []error
	p.stopMedia()
	if capture != nil {
		if err := capture.Close(); err != nil {
			errs = append(errs, fmt.Errorf("stop capture: %w", err))
		}
	}
	if err := p.player.Close(); err != nil {
		errs = append(errs, fmt.Errorf("stop playback: %w", err))
	}
	if dc != nil {
		if err := dc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close data channel: %w", err))
		}
	}
	if pc != nil {
		for _, sender := range pc.GetSenders() {
			if err := sender.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop sender: %w", err))
			}
		}
		if err := pc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close peer connection: %w", err))
		}
	}

	log.Printf("[webrtc] peer closed")
	return errors.Join(errs...)
}

func drainRTCP(sender *pion.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
