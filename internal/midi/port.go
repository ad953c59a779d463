package midi

import (
	"errors"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// Outbound tick addressing: a fixed percussion key on MIDI channel 10,
// sent as an on/off burst so hardware surfaces can voice the metronome.
const (
	tickChannel    uint8 = 9
	tickKey        uint8 = 77 // low wood block
	tickKeyAccent  uint8 = 76 // high wood block
	tickVelocity   uint8 = 80
	tickVelAccent  uint8 = 112
	tickBurstDelay       = 30 * time.Millisecond
)

// NoteEvent is an inbound note message from the control surface.
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
	On       bool
}

// Port wraps the first available MIDI in/out ports. Either side may be
// absent; the corresponding direction is simply inert. The events channel
// is buffered and drops on overflow so a slow consumer never blocks the
// driver callback.
type Port struct {
	mu     sync.Mutex
	in     drivers.In
	out    drivers.Out
	stop   func()
	send   func(gomidi.Message) error
	events chan NoteEvent
}

// Open connects to the first MIDI input and output ports the driver
// reports. An error means no port in either direction was available;
// callers are expected to degrade silently.
func Open() (*Port, error) {
	ins := gomidi.GetInPorts()
	outs := gomidi.GetOutPorts()
	if len(ins) == 0 && len(outs) == 0 {
		return nil, errors.New("no midi ports available")
	}
	p := &Port{events: make(chan NoteEvent, 32)}
	if len(ins) > 0 {
		p.in = ins[0]
		stop, err := gomidi.ListenTo(p.in, func(msg gomidi.Message, timestampms int32) {
			var channel, note, velocity uint8
			switch {
			case msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0:
				p.deliver(NoteEvent{Note: note, Velocity: velocity, Channel: channel, On: true})
			case msg.GetNoteOff(&channel, &note, &velocity),
				msg.GetNoteOn(&channel, &note, &velocity): // note-on velocity 0 is note-off
				p.deliver(NoteEvent{Note: note, Velocity: velocity, Channel: channel, On: false})
			}
		})
		if err != nil {
			return nil, err
		}
		p.stop = stop
	}
	if len(outs) > 0 {
		p.out = outs[0]
		send, err := gomidi.SendTo(p.out)
		if err != nil {
			if p.stop != nil {
				p.stop()
			}
			return nil, err
		}
		p.send = send
	}
	return p, nil
}

func (p *Port) deliver(ev NoteEvent) {
	select {
	case p.events <- ev:
	default:
		// Slow consumer; drop rather than stall the driver.
	}
}

// Events returns the inbound note stream.
func (p *Port) Events() <-chan NoteEvent {
	return p.events
}

// HasInput reports whether an input port was opened.
func (p *Port) HasInput() bool {
	return p.in != nil
}

// HasOutput reports whether an output port was opened.
func (p *Port) HasOutput() bool {
	return p.out != nil
}

// InName returns the connected input port name, or "".
func (p *Port) InName() string {
	if p.in == nil {
		return ""
	}
	return p.in.String()
}

// SendTick emits the metronome's two-message burst: note-on now, note-off
// shortly after. No-op without an output port.
func (p *Port) SendTick(accented bool) {
	p.mu.Lock()
	send := p.send
	p.mu.Unlock()
	if send == nil {
		return
	}
	on, off := TickMessages(accented)
	if err := send(on); err != nil {
		return
	}
	time.AfterFunc(tickBurstDelay, func() {
		p.mu.Lock()
		send := p.send
		p.mu.Unlock()
		if send != nil {
			_ = send(off)
		}
	})
}

// TickMessages builds the on/off pair for one metronome tick.
func TickMessages(accented bool) (on, off gomidi.Message) {
	key, vel := tickKey, tickVelocity
	if accented {
		key, vel = tickKeyAccent, tickVelAccent
	}
	return gomidi.NoteOn(tickChannel, key, vel), gomidi.NoteOff(tickChannel, key)
}

// Close stops listening and releases the ports.
func (p *Port) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	p.send = nil
	p.in = nil
	p.out = nil
}
