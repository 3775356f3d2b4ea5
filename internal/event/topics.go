package event

// Topic names published by the shell. Dotted, lowercase, noun.verb.
const (
	// TopicTabCreated fires after a tab is added to the store.
	TopicTabCreated = "tab.created"

	// TopicTabActivated fires after the active tab changes.
	TopicTabActivated = "tab.activated"

	// TopicTabClosed fires after a tab is removed.
	TopicTabClosed = "tab.closed"

	// TopicTabEvicted fires when a tab's live editing state is demoted to
	// a plain content snapshot.
	TopicTabEvicted = "tab.evicted"

	// TopicTabDirty fires when a tab's dirty flag transitions.
	TopicTabDirty = "tab.dirty.changed"

	// TopicDocChanged fires on every edit to the active document.
	TopicDocChanged = "document.changed"

	// TopicDocSaved fires after a document is written to disk.
	TopicDocSaved = "document.saved"

	// TopicDocExternal fires when a watched file changes outside the shell.
	TopicDocExternal = "document.changed.external"

	// TopicViewChanged fires when the view mode switches.
	TopicViewChanged = "view.changed"

	// TopicSessionSaved fires after a session snapshot is persisted.
	TopicSessionSaved = "session.saved"

	// TopicSessionRestored fires once at startup when a prior session is
	// rebuilt.
	TopicSessionRestored = "session.restored"
)
