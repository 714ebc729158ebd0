package azmount

// targetLatch tracks the two-stage "set target then move" protocol. An
// altitude and an azimuth are each staged by a :Sa/:Sz command; only when
// both have been acknowledged may a :MS# move commit them. Staged values are
// single-use: committing clears both flags before the move reply is even
// interpreted, so a failed move never leaves stale staged state behind.
type targetLatch struct {
	altStaged bool
	azStaged  bool
}

func (l *targetLatch) stageAlt(ok bool) {
	if ok {
		l.altStaged = true
	}
}

func (l *targetLatch) stageAz(ok bool) {
	if ok {
		l.azStaged = true
	}
}

// commit checks that both axes are staged and clears the latch. The caller
// sends the move command only if commit succeeds.
func (l *targetLatch) commit() error {
	if !l.altStaged || !l.azStaged {
		err := &StateError{Op: "move", Reason: "target not fully staged"}
		l.altStaged = false
		l.azStaged = false
		return err
	}
	l.altStaged = false
	l.azStaged = false
	return nil
}
