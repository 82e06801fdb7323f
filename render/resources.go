package render

// resourceStack releases resources in reverse order of creation. A swapchain
// generation pushes the swapchain, then every image view, then every
// framebuffer, so unwinding destroys framebuffers, then views, then the
// swapchain whether the caller is a rebuild, a failed build or shutdown.
type resourceStack struct {
	entries []resourceEntry
}

type resourceEntry struct {
	kind    string
	release func()
}

func (s *resourceStack) push(kind string, release func()) {
	s.entries = append(s.entries, resourceEntry{kind: kind, release: release})
}

func (s *resourceStack) unwind() {
	for i := len(s.entries) - 1; i >= 0; i-- {
		Logger().Debug("releasing swapchain resource", "kind", s.entries[i].kind)
		s.entries[i].release()
	}
	s.entries = s.entries[:0]
}
