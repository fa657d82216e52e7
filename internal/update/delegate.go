package update

import (
	"time"

	"updatekit/internal/appcast"
	apperrors "updatekit/internal/errors"
)

// coordinatorDelegate turns client callbacks into log lines, metrics and
// history. Only a found update and a relaunch request reach the loop.
type coordinatorDelegate struct {
	c *Coordinator
}

var _ Delegate = (*coordinatorDelegate)(nil)

func (d *coordinatorDelegate) WillScheduleUpdateCheck(after time.Duration) {
	d.c.log.Info().Dur("after", after).Msg("will schedule update check")
}

func (d *coordinatorDelegate) WillCheckForUpdates(kind CheckKind) {
	d.c.log.Info().Str("kind", kind.String()).Msg("update check starting")
	if kind != CheckScheduled {
		return
	}
	// Manual checks are counted by the coordinator when it starts them.
	d.c.loop.Post(func() {
		d.c.checks++
		d.c.publish()
	})
}

func (d *coordinatorDelegate) DidFinishLoadingAppcast(feed *appcast.Feed) {
	d.c.log.Info().Int("items", len(feed.Items)).Msg("finished loading appcast")
	for _, item := range feed.Items {
		d.c.log.Info().Str("item", item.VersionFull()).Msg("appcast item")
	}
}

func (d *coordinatorDelegate) DidFindValidUpdate(item appcast.Item) {
	d.c.log.Info().Str("item", item.VersionFull()).Msg("found valid update")
	latest := item.Identifier()
	d.c.loop.Post(func() {
		d.c.applyLatest(latest)
	})
}

func (d *coordinatorDelegate) DidNotFindUpdate(kind CheckKind) {
	d.c.log.Info().Str("kind", kind.String()).Msg("did not find valid update")
}

func (d *coordinatorDelegate) DidDownloadUpdate(item appcast.Item) {
	d.c.log.Info().Str("item", item.VersionFull()).Msg("downloaded update")
}

func (d *coordinatorDelegate) FailedToDownloadUpdate(item appcast.Item, err error) {
	d.c.log.Error().Err(err).Str("item", item.VersionFull()).Msg("failed to download update")
}

func (d *coordinatorDelegate) WillInstallUpdate(item appcast.Item) {
	d.c.log.Info().Str("item", item.VersionFull()).Msg("will install update")
}

func (d *coordinatorDelegate) RelaunchRequested(item appcast.Item, respond func(allow bool)) {
	d.c.log.Info().Str("item", item.VersionFull()).Msg("relaunch requested")
	if !d.c.loop.Post(func() {
		d.c.registry.RequestRelaunch(respond)
	}) {
		respond(false)
	}
}

func (d *coordinatorDelegate) WillRelaunchApplication() {
	d.c.log.Info().Msg("will relaunch application")
}

func (d *coordinatorDelegate) DidAbort(err error) {
	d.c.log.Error().Err(err).
		Str("code", string(apperrors.CodeOf(err))).
		Msg("update cycle aborted")
}

func (d *coordinatorDelegate) DidFinishUpdateCycle(result CycleResult) {
	ev := d.c.log.Info()
	if result.Err != nil {
		ev = d.c.log.Error().Err(result.Err)
	}
	ev.Str("kind", result.Kind.String()).
		Bool("update_found", result.UpdateFound).
		Dur("took", result.FinishedAt.Sub(result.StartedAt)).
		Msg("update cycle finished")

	observeCheck(result.Kind, string(outcomeOf(result.UpdateFound, result.Err)))
	var item appcast.Item
	if result.Item != nil {
		item = *result.Item
	}
	d.c.record(result.Kind, result.StartedAt, item.Identifier(), result.UpdateFound, result.Err)

	d.c.loop.Post(func() {
		if result.Kind == CheckScheduled {
			d.c.checks--
		}
		d.c.publish()
	})
}
