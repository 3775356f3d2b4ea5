package event

// TabEvent is the payload for tab lifecycle topics.
type TabEvent struct {
	ID    int
	Path  string
	Name  string
	Dirty bool
}

// DocumentEvent is the payload for document topics.
type DocumentEvent struct {
	TabID int
	Path  string
	Bytes int
}

// ViewEvent is the payload for view-mode topics.
type ViewEvent struct {
	Mode string
}

// SessionEvent is the payload for session topics.
type SessionEvent struct {
	Tabs    int
	Trigger string
}
