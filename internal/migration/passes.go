package migration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/petr-muller/redmine2github/internal/importer"
	"github.com/petr-muller/redmine2github/internal/translate"
)

func (m *Migration) translateOptions() translate.Options {
	opts := translate.Options{
		IncludeComments:     m.options.IncludeComments,
		IncludeAssignee:     m.options.IncludeAssignee,
		IncludeRedmineLinks: m.options.IncludeRedmineLinks,
	}
	if m.options.FixIssueMentions {
		opts.RewriteMentions = m.mapping
	}
	return opts
}

func (m *Migration) create(ctx context.Context) error {
	ids, err := m.records.TicketIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id < m.options.Start {
			m.logger.WithField("redmine", id).Debugf("Skipping issue below start offset %d", m.options.Start)
		}
	}

	for _, step := range Sequence(ids, m.options.Range, m.options.InsertPlaceholders) {
		if err := m.createOne(ctx, step); err != nil {
			m.salvage(ctx)
			return fmt.Errorf("redmine issue %d: %w", step.ID, err)
		}
	}
	return nil
}

func (m *Migration) createOne(ctx context.Context, step Step) error {
	logger := m.logger.WithField("redmine", step.ID)

	if number, mapped := m.mapping.Lookup(step.ID); mapped && !m.options.ResubmitMapped {
		logger.WithField("github", number).Debug("Issue already migrated, skipping")
		m.result.Skipped++
		return nil
	}

	var payload *importer.CreationPayload
	if step.Present {
		ticket, err := m.records.Load(step.ID)
		if err != nil {
			return err
		}
		if payload, err = m.translator.CreationPayload(ticket, m.translateOptions()); err != nil {
			return err
		}
		logger.Infof("Submitting issue: %s", ticket.Subject)
	} else {
		payload = m.translator.Placeholder(step.ID)
		logger.Info("Submitting placeholder issue")
	}

	handle, err := m.config.Importer.Submit(ctx, payload)
	if err != nil {
		return err
	}
	m.mapping.TrackPending(int64(handle), step.ID)
	logger.WithField("handle", handle).Debug("Issue import submitted")

	m.result.Submitted++
	if !step.Present {
		m.result.Placeholders++
	}
	m.submissions++

	if err := m.throttle(ctx); err != nil {
		return err
	}

	if every := m.options.CheckpointEvery; every > 0 && m.submissions%every == 0 {
		if err := m.checkpoint(ctx); err != nil {
			return fmt.Errorf("checkpoint failed: %w", err)
		}
	}
	return nil
}

// throttle keeps submissions under the import API limits
func (m *Migration) throttle(ctx context.Context) error {
	var pause time.Duration
	if m.submissions%throttleEvery == 0 {
		pause += throttlePause
	}
	if m.submissions%throttleLongEvery == 0 {
		pause += throttlePause
	}
	if pause == 0 {
		return nil
	}
	m.logger.WithField("submissions", m.submissions).Debugf("Throttling submissions for %s", pause)
	return m.config.Sleep(ctx, pause)
}

// checkpoint resolves the pending imports and persists the mapping
func (m *Migration) checkpoint(ctx context.Context) error {
	if m.mapping.PendingCount() > 0 {
		resolved, err := m.config.Importer.PollResolution(ctx, m.startedAt.Add(-sinceMargin))
		if err != nil {
			return err
		}
		handles := make(map[int64]int, len(resolved))
		for handle, number := range resolved {
			handles[int64(handle)] = number
		}
		added := m.mapping.Resolve(handles)
		m.result.Resolved += added
		m.logger.WithField("resolved", added).Info("Resolved issue imports")
	}

	if err := m.mapping.Save(); err != nil {
		return err
	}
	m.logger.WithField("entries", m.mapping.Len()).Infof("Saved identity mapping to %s", m.mapping.Path())
	return nil
}

// salvage persists what was already submitted when the creation pass fails
func (m *Migration) salvage(ctx context.Context) {
	if m.mapping.PendingCount() == 0 {
		return
	}
	m.logger.WithField("pending", m.mapping.PendingCount()).Info("Resolving already submitted imports before failing")
	if err := m.checkpoint(ctx); err != nil {
		m.logger.WithError(err).Warn("Failed to save already submitted imports")
	}
}

func (m *Migration) poll(ctx context.Context) error {
	if err := m.checkpoint(ctx); err != nil {
		return err
	}
	m.result.Unresolved = m.mapping.PendingCount()
	if m.result.Unresolved > 0 {
		m.logger.WithField("pending", m.result.Unresolved).Warn("Some imports were not reported by GitHub and are missing from the mapping")
	}
	return nil
}

func (m *Migration) link(ctx context.Context) error {
	ids, err := m.records.TicketIDs()
	if err != nil {
		return err
	}

	for _, step := range Sequence(ids, m.options.Range, false) {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := m.logger.WithField("redmine", step.ID)
		linked, err := m.linkOne(logger, step.ID)
		switch {
		case errors.Is(err, importer.ErrTicketNotFound):
			logger.WithError(err).Warn("GitHub issue not found, skipping")
			m.result.LinkSkipped++
		case err != nil:
			logger.WithError(err).Warn("Failed to add related issues")
			m.result.LinkFailures++
		case linked:
			m.result.Linked++
		default:
			m.result.LinkSkipped++
		}
	}
	return nil
}

// linkOne adds the related issue section to the GitHub issue migrated from the Redmine
// issue. It reports whether the GitHub issue needed an update.
func (m *Migration) linkOne(logger *logrus.Entry, id int) (bool, error) {
	number, mapped := m.mapping.Lookup(id)
	if !mapped {
		logger.Debug("Issue not migrated, skipping")
		return false, nil
	}
	logger = logger.WithField("github", number)

	ticket, err := m.records.Load(id)
	if err != nil {
		return false, err
	}
	refs := translate.CrossReferenceUpdate(ticket, m.mapping)
	if refs == nil {
		logger.Debug("Issue has no related issues")
		return false, nil
	}

	issue, err := m.config.Importer.FetchTicket(number)
	if err != nil {
		return false, err
	}
	body, err := m.translator.RelatedBody(issue.Body, refs, m.options.IncludeRedmineLinks)
	if err != nil {
		return false, err
	}
	if body == issue.Body {
		logger.Debug("Related issues are up to date")
		return false, nil
	}

	if _, err := m.config.Importer.ApplyUpdate(issue, importer.TicketUpdate{Body: &body}); err != nil {
		return false, err
	}
	logger.WithField("related", len(refs.Related)).WithField("children", len(refs.Children)).Info("Added related issues")
	return true, nil
}
