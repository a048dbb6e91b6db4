package tts

// ClipLoader turns text into clips. It is backed by a synthesis engine and
// a cache keyed by clip fingerprint.
type ClipLoader interface {
	// Load returns a handle immediately and populates it asynchronously.
	// onReady fires exactly once, possibly on a background goroutine and
	// possibly before Load returns, with a nil error on success.
	Load(text, clipID string, voice VoiceSettings, cache CacheSettings, onReady func(*ClipHandle, error)) *ClipHandle

	// Unload releases a handle, cancelling its load if still in flight.
	// Unload listeners are notified.
	Unload(clip *ClipHandle)

	// AddUnloadListener registers fn for unload notifications. fn may be
	// called from any goroutine.
	AddUnloadListener(fn func(*ClipHandle)) (remove func())
}

// AudioStream is decoded audio ready for playback. A stream may still be
// growing while the loader streams data into it.
type AudioStream interface {
	SampleRate() int
	Channels() int

	// TotalSamples returns the number of samples per channel received so far.
	TotalSamples() int

	// IsComplete reports whether all samples have been received.
	IsComplete() bool
}

// AudioPlayer is the audio output primitive. Implementations have no
// completion callback; the controller polls IsPlaying and ElapsedSamples.
type AudioPlayer interface {
	// Init prepares the output device.
	Init() error

	// Play starts stream at startSample.
	Play(stream AudioStream, startSample int) error

	Pause()
	Resume()

	// Stop halts playback and clears the current stream.
	Stop()

	IsPlaying() bool

	// ElapsedSamples returns the playhead position in samples per channel.
	ElapsedSamples() int

	// ClipStream returns the stream being played, or nil.
	ClipStream() AudioStream

	// PlaybackErrors describes playback problems, empty when healthy.
	PlaybackErrors() string
}

// Scheduler runs functions on the main context, the single goroutine that
// owns speaker state. Post must be safe to call from any goroutine and must
// never run fn inline.
type Scheduler interface {
	Post(fn func())
}

// TextProcessor transforms a list of phrases. It may expand one phrase into
// several, rewrite phrases, or drop them.
type TextProcessor interface {
	Process(phrases []string) []string
}

// TextProcessorFunc adapts a function to TextProcessor.
type TextProcessorFunc func(phrases []string) []string

// Process implements TextProcessor.
func (f TextProcessorFunc) Process(phrases []string) []string {
	return f(phrases)
}

// VoiceCatalog looks up preset voice settings by id.
type VoiceCatalog interface {
	Voice(id string) (VoiceSettings, bool)
}
