package rows

// View is the rendered projection of a Table: the flattened active page plus a copy of the
// shared table state, with pagination pinned to a single page holding every flattened row.
// A View is a value; mutating it has no effect on the Table it came from.
type View struct {
	Rows  []Row
	State TableState

	// Source-table pagination, for the footer.
	PageIndex int
	PageCount int
	Filtered  int
	Selected  int
}

// Find resolves id to its row and position in the view.
func (v View) Find(id string) (Row, int, bool) {
	for i, r := range v.Rows {
		if r.RowID() == id {
			return r, i, true
		}
	}
	return nil, -1, false
}

// ParentOf returns the parent row a child belongs to, when that parent is in the view.
func (v View) ParentOf(c Child) (Parent, bool) {
	for _, r := range v.Rows {
		if p, ok := r.(Parent); ok && p.ID == c.ParentID {
			return p, true
		}
	}
	return Parent{}, false
}

func (v View) IDs() []string {
	out := make([]string, 0, len(v.Rows))
	for _, r := range v.Rows {
		out = append(out, r.RowID())
	}
	return out
}

// Parents returns only the parent rows of the view, in view order.
func (v View) Parents() []Parent {
	var out []Parent
	for _, r := range v.Rows {
		if p, ok := r.(Parent); ok {
			out = append(out, p)
		}
	}
	return out
}

func (v View) IsSelected(id string) bool { return v.State.Selection[id] }

func (v View) ColumnVisible(col Column) bool {
	vis, ok := v.State.Visibility[col]
	return !ok || vis
}

// Agreement derives the agreement shown for r, resolving a child's parent within the view.
func (v View) Agreement(r Row) Agreement {
	switch x := r.(type) {
	case Parent:
		return ParentAgreement(x)
	case Child:
		p, ok := v.ParentOf(x)
		if !ok {
			return AgreementPending
		}
		return ChildAgreement(p, x)
	default:
		return AgreementPending
	}
}
