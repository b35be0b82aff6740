package audio

// Event is a lifecycle signal emitted by a Handle.
type Event int

const (
	// EventPlay is emitted once audio is audibly playing.
	EventPlay Event = iota
	// EventEnd is emitted when the source played to completion.
	EventEnd
	// EventStop is emitted when the handle was stopped.
	EventStop
	// EventPause is emitted when playback was paused.
	EventPause
	// EventPlayError is emitted when playback could not start.
	EventPlayError
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventPlay:
		return "play"
	case EventEnd:
		return "end"
	case EventStop:
		return "stop"
	case EventPause:
		return "pause"
	case EventPlayError:
		return "playerror"
	default:
		return "unknown"
	}
}

// Listener receives handle events. err is set for EventPlayError and, when
// decoding broke off early, for EventEnd. Listeners may be called from any
// goroutine and must not block.
type Listener func(ev Event, err error)

// Handle is one playback of one source.
type Handle interface {
	// Play requests playback. The outcome is reported to the listener.
	Play()

	// Playing reports whether audio is currently audible.
	Playing() bool

	// Stop silences playback.
	Stop() error

	// Unload releases decoder and device resources. The handle is unusable
	// afterwards.
	Unload() error
}

// Backend creates playback handles.
type Backend interface {
	// Open prepares a handle on src without starting playback.
	Open(src string, l Listener) (Handle, error)

	// Prime starts bringing up the output device ahead of the first Open.
	// It does not block on device initialization.
	Prime() error
}
