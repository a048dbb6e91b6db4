package tts

import (
	"sync"
	"time"
)

// ClipState is the load state of a clip.
type ClipState int

const (
	// ClipPreparing indicates the clip is still being synthesized or read.
	ClipPreparing ClipState = iota
	// ClipLoaded indicates the clip has a playable stream.
	ClipLoaded
	// ClipError indicates loading failed.
	ClipError
	// ClipUnloaded indicates the clip was released.
	ClipUnloaded
)

// String returns the string representation of the state.
func (s ClipState) String() string {
	switch s {
	case ClipPreparing:
		return "preparing"
	case ClipLoaded:
		return "loaded"
	case ClipError:
		return "error"
	case ClipUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// CacheLocation selects where a loader keeps synthesized clips.
type CacheLocation int

const (
	// CacheNone disables caching; every load synthesizes.
	CacheNone CacheLocation = iota
	// CacheMemory keeps clips in the runtime cache only.
	CacheMemory
	// CacheDisk keeps clips in memory and persists them to disk.
	CacheDisk
)

// String returns the string representation of the location.
func (l CacheLocation) String() string {
	switch l {
	case CacheNone:
		return "none"
	case CacheMemory:
		return "memory"
	case CacheDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// ParseCacheLocation parses "none", "memory" or "disk".
func ParseCacheLocation(s string) (CacheLocation, bool) {
	switch s {
	case "none", "":
		return CacheNone, true
	case "memory":
		return CacheMemory, true
	case "disk":
		return CacheDisk, true
	default:
		return CacheNone, false
	}
}

// CacheSettings is the cache policy for one load.
type CacheSettings struct {
	Location CacheLocation
}

// ClipHandle references a clip owned by the loader. The loader mutates it
// from background goroutines; every accessor is safe for concurrent use.
type ClipHandle struct {
	ClipID  string
	Text    string
	Voice   VoiceSettings
	Cache   CacheSettings
	Created time.Time

	mu      sync.RWMutex
	state   ClipState
	stream  AudioStream
	loadErr error
}

// NewClipHandle creates a handle in the preparing state.
func NewClipHandle(text, clipID string, voice VoiceSettings, cache CacheSettings) *ClipHandle {
	return &ClipHandle{
		ClipID:  clipID,
		Text:    text,
		Voice:   voice,
		Cache:   cache,
		Created: time.Now(),
		state:   ClipPreparing,
	}
}

// State returns the load state.
func (c *ClipHandle) State() ClipState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stream returns the audio stream, or nil.
func (c *ClipHandle) Stream() AudioStream {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stream
}

// LoadError returns the load error, if any.
func (c *ClipHandle) LoadError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

// MarkLoaded moves the clip to the loaded state.
func (c *ClipHandle) MarkLoaded(stream AudioStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ClipUnloaded {
		return
	}
	c.state = ClipLoaded
	c.stream = stream
	c.loadErr = nil
}

// MarkFailed moves the clip to the error state.
func (c *ClipHandle) MarkFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ClipUnloaded {
		return
	}
	c.state = ClipError
	c.loadErr = err
}

// MarkUnloaded releases the stream. It reports false if the clip was
// already unloaded.
func (c *ClipHandle) MarkUnloaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ClipUnloaded {
		return false
	}
	c.state = ClipUnloaded
	c.stream = nil
	return true
}

// clipReadiness classifies a clip for playback. It returns nil when the clip
// can be played and the reason it cannot otherwise. Unloaded clips map to
// the cancellation sentinel.
func clipReadiness(c *ClipHandle) error {
	if c == nil {
		return ErrClipMissing
	}
	state := c.State()
	if state == ClipUnloaded {
		return ErrClipUnloaded
	}
	if err := c.LoadError(); err != nil {
		return err
	}
	switch {
	case state == ClipError:
		return ErrLoadFailed
	case c.Stream() == nil:
		return ErrNoStream
	}
	return nil
}
