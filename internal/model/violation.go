package model

// ViolationKind identifies the proctoring signal that raised a violation.
type ViolationKind string

const (
	ViolationTabHidden        ViolationKind = "visibility_hidden"
	ViolationFocusLost        ViolationKind = "focus_lost"
	ViolationFullscreenExited ViolationKind = "fullscreen_exited"
)
