package game

import (
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// --- WordProvider ---

type MockWordProvider struct {
	mock.Mock
}

func (m *MockWordProvider) NextWord() string {
	args := m.Called()
	return args.String(0)
}

// scriptedWords hands out a fixed sequence, cycling when exhausted.
type scriptedWords struct {
	words []string
	next  int
}

func (s *scriptedWords) NextWord() string {
	w := s.words[s.next%len(s.words)]
	s.next++
	return w
}

// --- Broadcaster ---

type broadcastRecord struct {
	target  string // room id, user id, or "*"
	event   string
	payload any
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	records []broadcastRecord
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{}
}

func (b *recordingBroadcaster) ToRoom(roomID, event string, payload any) {
	b.append(broadcastRecord{target: roomID, event: event, payload: payload})
}

func (b *recordingBroadcaster) ToUser(userID, event string, payload any) {
	b.append(broadcastRecord{target: userID, event: event, payload: payload})
}

func (b *recordingBroadcaster) ToAll(event string, payload any) {
	b.append(broadcastRecord{target: "*", event: event, payload: payload})
}

func (b *recordingBroadcaster) append(r broadcastRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, r)
}

func (b *recordingBroadcaster) events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.records))
	for _, r := range b.records {
		out = append(out, r.event)
	}
	return out
}

func (b *recordingBroadcaster) count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.records {
		if r.event == event {
			n++
		}
	}
	return n
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
}

// --- TickerFactory ---

// fakeTickers hands out buffered channels the test feeds manually.
type fakeTickers struct {
	mu    sync.Mutex
	chans []chan time.Time
}

func (f *fakeTickers) Create(d time.Duration) (<-chan time.Time, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan time.Time, 64)
	f.chans = append(f.chans, ch)
	return ch, func() {}
}

// latest returns the most recently created tick channel.
func (f *fakeTickers) latest() chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.chans) == 0 {
		return nil
	}
	return f.chans[len(f.chans)-1]
}
