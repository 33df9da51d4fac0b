package order

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
	// Terminal, but no saga step sets it.
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusFailed, StatusCancelled},
}

// CanTransition reports whether from -> to is allowed. Only pending has exits.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
