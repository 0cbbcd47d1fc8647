package wasisvc

// ArgsSizesGet implements args_sizes_get. Config.Args is expected to carry
// the program name as its first element, per spec.md §4.5's "program name
// prepends argv" text; it returns the argument count and the total size
// (in NUL-terminated UTF-8 bytes) the guest must allocate for ArgsGet to
// fill.
func (s *Service) ArgsSizesGet() (count, bufSize uint32) {
	return uint32(len(s.args)), argBufSize(s.args)
}

// ArgsGet returns the NUL-terminated UTF-8 argv strings, in order.
func (s *Service) ArgsGet() []string {
	return s.args
}

// EnvironSizesGet implements environ_sizes_get.
func (s *Service) EnvironSizesGet() (count, bufSize uint32) {
	return uint32(len(s.env)), argBufSize(s.env)
}

// EnvironGet returns the NUL-terminated UTF-8 environ strings, in order.
func (s *Service) EnvironGet() []string {
	return s.env
}

// argBufSize is the total byte count of strs as NUL-terminated UTF-8, the
// shape args_get/environ_get's buffer argument must be sized to.
func argBufSize(strs []string) uint32 {
	var n uint32
	for _, s := range strs {
		n += uint32(len(s)) + 1
	}
	return n
}
