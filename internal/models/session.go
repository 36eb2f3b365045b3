package models

import (
	"errors"
	"time"
)

// Fixed strings shown to the user.
const (
	NoTextDetected     = "No text detected."
	NoOutputGenerated  = "No output generated."
	ErrorNotice        = "<p>An error occurred during processing.</p>"
	MissingImageNotice = "Please upload an image first."
)

// Progress checkpoints. They mark pipeline stages, not measured work.
const (
	ProgressIdle          = 0
	ProgressStarted       = 10
	ProgressTextExtracted = 40
	ProgressFormatted     = 80
	ProgressDone          = 100
)

var (
	ErrNoImage            = errors.New("no image selected")
	ErrStaleRun           = errors.New("run superseded by a newer generation")
	ErrProgressRegression = errors.New("progress may not move backwards")
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseReady      Phase = "ready"
	PhaseProcessing Phase = "processing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Session is the per-user pipeline state. Mutate it only through the
// transition methods below.
type Session struct {
	ID         string         `json:"id"`
	Image      *UploadedImage `json:"image,omitempty"`
	Phase      Phase          `json:"phase"`
	Progress   int            `json:"progress"`
	Output     string         `json:"output"`
	Generation uint64         `json:"generation"`
	Alert      string         `json:"alert,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Phase:     PhaseIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SelectImage replaces the image and resets output and progress. Any run in
// flight for the previous image is invalidated.
func (s *Session) SelectImage(img *UploadedImage) error {
	if img == nil {
		return ErrNoImage
	}
	s.Image = img
	s.Output = ""
	s.Alert = ""
	s.Progress = ProgressIdle
	s.Phase = PhaseReady
	s.Generation++
	return nil
}

// NoteMissingImage records the alert shown when processing is requested
// without an image.
func (s *Session) NoteMissingImage() {
	s.Notify(MissingImageNotice)
}

// Notify sets the message shown once as a blocking alert. An empty message
// clears it.
func (s *Session) Notify(msg string) {
	s.Alert = msg
}

// Begin starts a new run and returns its generation token.
func (s *Session) Begin() (uint64, error) {
	if s.Image == nil {
		return 0, ErrNoImage
	}
	s.Generation++
	s.Alert = ""
	s.Output = ""
	s.Progress = ProgressStarted
	s.Phase = PhaseProcessing
	return s.Generation, nil
}

// Current reports whether gen is the run this session is waiting on.
func (s *Session) Current(gen uint64) bool {
	return s.Phase == PhaseProcessing && s.Generation == gen
}

// Advance moves progress forward for run gen.
func (s *Session) Advance(gen uint64, progress int) error {
	if !s.Current(gen) {
		return ErrStaleRun
	}
	if progress < s.Progress {
		return ErrProgressRegression
	}
	s.Progress = progress
	return nil
}

func (s *Session) Complete(gen uint64, output string) error {
	if !s.Current(gen) {
		return ErrStaleRun
	}
	s.Progress = ProgressDone
	s.Output = output
	s.Phase = PhaseDone
	return nil
}

func (s *Session) Fail(gen uint64) error {
	if !s.Current(gen) {
		return ErrStaleRun
	}
	s.Progress = ProgressIdle
	s.Output = ErrorNotice
	s.Phase = PhaseFailed
	return nil
}

// Clone returns a copy that shares nothing mutable with s.
func (s *Session) Clone() *Session {
	c := *s
	if s.Image != nil {
		img := *s.Image
		c.Image = &img
	}
	return &c
}
