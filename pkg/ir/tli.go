package ir

// TargetLibraryInfo classifies known library calls so the PDG builder
// can treat memory intrinsics as reads and writes without a body.
type TargetLibraryInfo struct {
	extra map[string][2]bool // name -> {reads, writes}
}

// NewTargetLibraryInfo creates the default classification covering the
// common C memory intrinsics.
func NewTargetLibraryInfo() *TargetLibraryInfo {
	return &TargetLibraryInfo{extra: map[string][2]bool{
		"memcpy":  {true, true},
		"memmove": {true, true},
		"memset":  {false, true},
		"memcmp":  {true, false},
		"strcpy":  {true, true},
		"strlen":  {true, false},
	}}
}

// Register adds or overrides the classification for a call target.
func (t *TargetLibraryInfo) Register(name string, reads, writes bool) {
	if t.extra == nil {
		t.extra = make(map[string][2]bool)
	}
	t.extra[name] = [2]bool{reads, writes}
}

// MemoryAccess reports whether a call to name reads or writes memory.
// Unknown calls stay conservative: both.
func (t *TargetLibraryInfo) MemoryAccess(name string) (reads, writes bool) {
	if t != nil {
		if acc, ok := t.extra[name]; ok {
			return acc[0], acc[1]
		}
	}
	return true, true
}
