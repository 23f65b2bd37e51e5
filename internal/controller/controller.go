// Package controller binds user actions on a digitizing session to the
// annotation engine: drawing, editing, reclassifying and splitting features,
// and saving or submitting the resulting document.
//
// All mutation happens synchronously on the host's event loop, so the
// controller holds no locks. Network completions are applied on the same
// loop.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firnline/api/internal/annotate"
	"firnline/api/internal/classify"
	"firnline/api/internal/client"
	"firnline/api/internal/document"
	"firnline/api/internal/radar"
)

// Level classifies a user-facing notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

// Notifier receives user-facing messages. The host UI renders them.
type Notifier interface {
	Notify(level Level, message string)
}

// SubmissionClient is the backend surface the controller needs.
type SubmissionClient interface {
	FetchLatest(ctx context.Context, radarKey string) (*document.Document, error)
	Submit(ctx context.Context, doc *document.Document) (string, error)
}

// Saver persists an exported document locally, between submissions.
type Saver interface {
	Save(doc *document.Document) error
}

// ErrSubmitInFlight refuses a second submission while one is outstanding.
var ErrSubmitInFlight = errors.New("a submission is already in flight")

// Controller owns one digitizing session on one radargram.
type Controller struct {
	meta     *radar.Meta
	reg      *classify.Registry
	set      *annotate.Set
	client   SubmissionClient
	saver    Saver
	notifier Notifier

	selected   classify.Kind
	dirty      bool
	submitting bool

	now func() time.Time
}

func New(meta *radar.Meta, reg *classify.Registry, cl SubmissionClient, saver Saver, notifier Notifier) *Controller {
	return &Controller{
		meta:     meta,
		reg:      reg,
		set:      annotate.NewSet(),
		client:   cl,
		saver:    saver,
		notifier: notifier,
		now:      time.Now,
	}
}

// Dirty reports whether the session has changes not yet saved or submitted.
// The host uses it to warn before navigating away.
func (c *Controller) Dirty() bool { return c.dirty }

// Set exposes the live annotation set for rendering.
func (c *Controller) Set() *annotate.Set { return c.set }

// SelectedKind is the classification applied to newly drawn features.
func (c *Controller) SelectedKind() classify.Kind { return c.selected }

// SelectKind changes the classification for subsequent draws.
func (c *Controller) SelectKind(kind classify.Kind) error {
	if !c.reg.Has(kind) {
		return &classify.UnknownKindError{Kind: kind}
	}
	c.selected = kind
	return nil
}

// Draw creates a feature of the selected kind from a finished stroke,
// validates it and adds it to the session.
func (c *Controller) Draw(vertices []annotate.Vertex) (*annotate.Feature, error) {
	if c.selected == "" {
		return nil, fmt.Errorf("no classification selected")
	}
	f, err := annotate.NewFeature(c.reg, c.selected, vertices)
	if err != nil {
		return nil, err
	}
	f.Revalidate()
	c.set.Add(f)
	c.dirty = true
	return f, nil
}

// EditVertices replaces a feature's vertex sequence and re-validates that
// feature only.
func (c *Controller) EditVertices(id string, vertices []annotate.Vertex) error {
	f := c.set.Get(id)
	if f == nil {
		return fmt.Errorf("no feature %s", id)
	}
	f.SetVertices(vertices)
	f.Revalidate()
	c.dirty = true
	return nil
}

// Delete removes a feature and its validation markers from the session.
func (c *Controller) Delete(id string) error {
	if !c.set.Remove(id) {
		return fmt.Errorf("no feature %s", id)
	}
	c.dirty = true
	return nil
}

// Reclassify changes a feature's kind. Name and color follow the registry
// entry; vertices and recorded issues stay as they are.
func (c *Controller) Reclassify(id string, kind classify.Kind) error {
	f := c.set.Get(id)
	if f == nil {
		return fmt.Errorf("no feature %s", id)
	}
	if err := f.Reclassify(c.reg, kind); err != nil {
		return err
	}
	c.dirty = true
	return nil
}

// Split cuts a feature at the given point, replacing it with two children
// that inherit its kind. A cut that would leave all vertices on one side is
// refused and the parent kept.
func (c *Controller) Split(id string, splitX, splitY float64) (*annotate.Feature, *annotate.Feature, error) {
	f := c.set.Get(id)
	if f == nil {
		return nil, nil, fmt.Errorf("no feature %s", id)
	}
	childA, childB, err := annotate.Split(c.reg, f, splitX, splitY)
	if err != nil {
		return nil, nil, err
	}
	childA.Revalidate()
	childB.Revalidate()
	c.set.ReplaceWith(id, childA, childB)
	c.dirty = true
	return childA, childB, nil
}

// SetDifficulty records the contributor's difficulty judgement on the
// session's metadata.
func (c *Controller) SetDifficulty(d radar.Difficulty) error {
	if _, err := radar.ParseDifficulty(string(d)); err != nil {
		return err
	}
	c.meta.Difficulty = &d
	c.dirty = true
	return nil
}

// SetComment records a free-form note on the session's metadata.
func (c *Controller) SetComment(comment string) {
	c.meta.Comment = &comment
	c.dirty = true
}

// LoadLatest pulls the user's most recent submission and, if one exists,
// replaces the annotation set wholesale with its contents. No prior
// submission leaves the session untouched.
func (c *Controller) LoadLatest(ctx context.Context) error {
	doc, err := c.client.FetchLatest(ctx, c.meta.RadarKey)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	features, report, err := document.Import(doc, c.meta, c.reg)
	if err != nil {
		c.notifier.Notify(LevelError, fmt.Sprintf("could not load previous submission: %v", err))
		return err
	}
	for _, skipped := range report.Skipped {
		c.notifier.Notify(LevelError, skipped)
	}

	c.set.ReplaceAll(features)
	if doc.Difficulty != nil {
		c.meta.Difficulty = doc.Difficulty
	}
	if doc.Comment != nil {
		c.meta.Comment = doc.Comment
	}
	c.dirty = true
	return nil
}

// Save exports the session and persists it locally, clearing the dirty flag
// on success.
func (c *Controller) Save() error {
	if c.saver == nil {
		return fmt.Errorf("no local save target")
	}
	doc := document.Export(c.set, c.meta, c.now())
	if err := c.saver.Save(doc); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// Submit runs the pre-submit gate and, if it passes, sends the exported
// document to the backend. The gate fails without any network call. Only one
// submission may be in flight at a time.
func (c *Controller) Submit(ctx context.Context) error {
	if c.submitting {
		return ErrSubmitInFlight
	}
	if err := c.gate(); err != nil {
		c.notifier.Notify(LevelError, err.Error())
		return err
	}

	c.submitting = true
	defer func() { c.submitting = false }()

	doc := document.Export(c.set, c.meta, c.now())
	msg, err := c.client.Submit(ctx, doc)
	if err != nil {
		if errors.Is(err, client.ErrNotAuthenticated) {
			c.notifier.Notify(LevelError, "You are not logged in. Log in and submit again; your work is kept.")
		} else {
			c.notifier.Notify(LevelError, fmt.Sprintf("submission failed: %v", err))
		}
		return err
	}

	c.dirty = false
	c.notifier.Notify(LevelSuccess, msg)
	return nil
}

// gate recomputes validity across the whole set. Stored issues are not
// trusted and not modified.
func (c *Controller) gate() error {
	if c.meta.Difficulty == nil {
		return fmt.Errorf("choose a difficulty before submitting")
	}
	if c.set.Len() == 0 {
		return fmt.Errorf("nothing to submit: draw at least one feature")
	}
	for _, f := range c.set.Features() {
		if issues := annotate.Validate(f); len(issues) > 0 {
			return fmt.Errorf("feature %q has %d unresolved issue(s): %s", f.Name, len(issues), issues[0])
		}
	}
	return nil
}
