package driver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/odvcencio/pharos/pkg/protocol"
)

// networkMonitor tracks inflight requests and the fate of the main document
// request during one navigation.
type networkMonitor struct {
	mu            sync.Mutex
	inflight      map[string]struct{}
	lastActivity  time.Time
	mainRequestID string
	mainFailed    bool
	mainErrorText string
	removers      []func()
}

func newNetworkMonitor(session *protocol.Session) *networkMonitor {
	m := &networkMonitor{
		inflight:     make(map[string]struct{}),
		lastActivity: time.Now(),
	}

	m.removers = append(m.removers, session.On("Network.requestWillBeSent", func(ev protocol.Event) {
		var payload struct {
			RequestID string `json:"requestId"`
			Type      string `json:"type"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		m.mu.Lock()
		m.inflight[payload.RequestID] = struct{}{}
		m.lastActivity = time.Now()
		if m.mainRequestID == "" && payload.Type == "Document" {
			m.mainRequestID = payload.RequestID
		}
		m.mu.Unlock()
	}))

	finish := func(ev protocol.Event, failed bool) {
		var payload struct {
			RequestID string `json:"requestId"`
			ErrorText string `json:"errorText"`
			Canceled  bool   `json:"canceled"`
		}
		if err := json.Unmarshal(ev.Params, &payload); err != nil {
			return
		}
		m.mu.Lock()
		delete(m.inflight, payload.RequestID)
		m.lastActivity = time.Now()
		if failed && !payload.Canceled && payload.RequestID == m.mainRequestID {
			m.mainFailed = true
			m.mainErrorText = payload.ErrorText
		}
		m.mu.Unlock()
	}
	m.removers = append(m.removers, session.On("Network.loadingFinished", func(ev protocol.Event) {
		finish(ev, false)
	}))
	m.removers = append(m.removers, session.On("Network.loadingFailed", func(ev protocol.Event) {
		finish(ev, true)
	}))

	return m
}

func (m *networkMonitor) detach() {
	for _, remove := range m.removers {
		remove()
	}
}

// quietFor reports whether the network has been idle for at least threshold.
func (m *networkMonitor) quietFor(threshold time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight) == 0 && time.Since(m.lastActivity) >= threshold
}

func (m *networkMonitor) mainDocumentFailure() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mainFailed, m.mainErrorText
}
