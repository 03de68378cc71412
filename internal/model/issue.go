package model

// Issue is the subset of a tracker issue that the bot renders in chat.
// It exists only for the duration of a single lookup.
type Issue struct {
	// Key is the tracker key of the issue (e.g., PROJ-123).
	Key string `json:"key"`

	// Summary is the one-line title of the issue.
	Summary string `json:"summary"`

	// Assignee is the display name of the assigned user. Empty when
	// the issue is unassigned.
	Assignee string `json:"assignee"`

	// Reporter is the display name of the user who filed the issue.
	Reporter string `json:"reporter"`

	// Permalink is the stable URL of the issue in the tracker's web UI.
	Permalink string `json:"permalink"`

	// Status is the tracker's status name (e.g., "In Progress").
	Status string `json:"status"`
}
