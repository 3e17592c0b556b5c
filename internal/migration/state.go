package migration

// State is the stage a migration run is in
type State int

const (
	Initializing State = iota
	Validating
	Creating
	Polling
	Linking
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "INITIALIZING"
	case Validating:
		return "VALIDATING"
	case Creating:
		return "CREATING"
	case Polling:
		return "POLLING"
	case Linking:
		return "LINKING"
	case Done:
		return "DONE"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
