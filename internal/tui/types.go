package tui

// ProjectItem is a summary of a catalog project for the list view
type ProjectItem struct {
	ID         string
	Files      []string
	ReadyToRun bool
}

// FileEntry is one extracted archive file for the browser
type FileEntry struct {
	Path     string
	Content  string
	IsBinary bool
}

// AcquisitionDetail represents one recorded pipeline run
type AcquisitionDetail struct {
	ID        string
	Stage     string
	Error     string
	ExitCode  int
	StartedAt string
}
