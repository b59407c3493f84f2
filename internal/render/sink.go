package render

import "sync"

// MemorySink records the latest value written per field. It backs the status
// endpoint and tests; a real surface would push the writes on to a client.
type MemorySink struct {
	mu      sync.Mutex
	text    map[string]string
	enabled map[string]bool
	visible map[string]bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		text:    make(map[string]string),
		enabled: make(map[string]bool),
		visible: make(map[string]bool),
	}
}

func (s *MemorySink) SetText(field, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text[field] = value
}

func (s *MemorySink) SetEnabled(field string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[field] = enabled
}

func (s *MemorySink) SetVisible(field string, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible[field] = visible
}

func (s *MemorySink) Text(field string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text[field]
}

func (s *MemorySink) Enabled(field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[field]
}

func (s *MemorySink) Visible(field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible[field]
}

// State returns a copy of every recorded field, for the status endpoint.
func (s *MemorySink) State() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, 3)
	text := make(map[string]string, len(s.text))
	for k, v := range s.text {
		text[k] = v
	}
	enabled := make(map[string]bool, len(s.enabled))
	for k, v := range s.enabled {
		enabled[k] = v
	}
	visible := make(map[string]bool, len(s.visible))
	for k, v := range s.visible {
		visible[k] = v
	}
	out["text"] = text
	out["enabled"] = enabled
	out["visible"] = visible
	return out
}
