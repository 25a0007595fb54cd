package timesheet

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/warp/timesheet-engine/generic"
)

// LogNotifier is an EventSink that logs every lifecycle event. It never
// refuses one.
type LogNotifier struct {
	Log *log.Logger
}

func (n LogNotifier) OnTimesheetEvent(_ context.Context, ev generic.Event) error {
	if n.Log == nil {
		return nil
	}
	n.Log.Info("[event] "+string(ev.Code),
		"tenant", ev.Tenant,
		"timesheet", ev.TimesheetID,
		"actor", ev.ActorID,
		"ref", ev.Params["ref"],
	)
	return nil
}
