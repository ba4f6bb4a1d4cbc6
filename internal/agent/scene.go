package agent

// scene tracks the guest the provisioner is building. It is dirty from the
// moment storage is about to be allocated until the guest is defined; a
// scene left dirty by a failed job is cleaned up at the start of the next
// iteration.
type scene struct {
	dirty  bool
	volume string
	path   string
	seed   string
}

func (s *scene) mark(volume, path, seed string) {
	s.dirty = true
	s.volume = volume
	s.path = path
	s.seed = seed
}

func (s *scene) clear() {
	s.dirty = false
	s.volume = ""
	s.path = ""
	s.seed = ""
}
