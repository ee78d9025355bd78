package domain

// Action is the replenishment recommendation attached to a final inventory row.
type Action string

const (
	ActionReorderNow  Action = "REORDER NOW"
	ActionReorderSoon Action = "REORDER SOON"
	ActionOverstocked Action = "OVERSTOCKED"
	ActionAdequate    Action = "ADEQUATE"
)

// ClassifyAction compares an inventory position against the SKU's policy.
func ClassifyAction(position int, reorderPoint, safetyStock, eoq float64) Action {
	ip := float64(position)
	switch {
	case ip <= reorderPoint:
		return ActionReorderNow
	case ip <= reorderPoint+0.5*safetyStock:
		return ActionReorderSoon
	case eoq > 0 && ip > reorderPoint+1.5*eoq:
		return ActionOverstocked
	default:
		return ActionAdequate
	}
}
