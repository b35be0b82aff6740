// Package audio provides the playback primitive used for voice replies.
//
// A Backend opens Handles on an audio source (an http(s) URL or a local
// file). A Handle reports its lifecycle through a Listener: EventPlay once
// sound is audible, EventEnd on natural completion, EventStop and EventPause
// when silenced, and EventPlayError when playback could not start. The
// production backend decodes with ffmpeg and plays through oto/v3; a mock
// backend is provided for tests.
package audio
