package rows

// Drag tracks one manual reorder gesture over a View.
//
// Only parent rows take part: a child has no position of its own (it is always rendered
// right after its parent), so a child is never accepted as the dragged row or the drop
// target. Rejected gestures are silent no-ops.
type Drag struct {
	active string
	over   string
}

// Start picks up the row id. It is rejected when id is not in the view or is a child.
func (d *Drag) Start(v View, id string) bool {
	d.Cancel()
	r, _, ok := v.Find(id)
	if !ok {
		return false
	}
	if _, isParent := r.(Parent); !isParent {
		return false
	}
	d.active = id
	return true
}

// Over records the row currently under the dragged one. It is ignored when no drag is
// active and never touches the canonical sequence.
func (d *Drag) Over(id string) {
	if d.active == "" {
		return
	}
	d.over = id
}

// Active returns the id being dragged.
func (d *Drag) Active() (string, bool) {
	return d.active, d.active != ""
}

// OverID returns the last tracked drop target, if any.
func (d *Drag) OverID() string { return d.over }

func (d *Drag) Cancel() {
	d.active = ""
	d.over = ""
}

// End finishes the gesture and reports whether the canonical order changed.
//
// The move is applied only when activeID and overID both resolve to parents in v and
// differ; the dragged parent is removed from its canonical index and re-inserted at the
// canonical index of the target. The drag state is cleared either way.
func (d *Drag) End(t *Table, v View, activeID, overID string) bool {
	defer d.Cancel()
	if t == nil || activeID == "" || overID == "" || activeID == overID {
		return false
	}
	if !resolvesToParent(v, activeID) || !resolvesToParent(v, overID) {
		return false
	}
	from := t.IndexOf(activeID)
	to := t.IndexOf(overID)
	if from < 0 || to < 0 {
		return false
	}
	return t.Move(from, to)
}

// Drop ends the gesture using the tracked active and over ids.
func (d *Drag) Drop(t *Table, v View) bool {
	return d.End(t, v, d.active, d.over)
}

func resolvesToParent(v View, id string) bool {
	r, _, ok := v.Find(id)
	if !ok {
		return false
	}
	_, isParent := r.(Parent)
	return isParent
}
