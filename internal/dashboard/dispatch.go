package dashboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/loykin/botpanel/internal/metrics"
	"github.com/loykin/botpanel/internal/push"
)

// Action names a user-triggered control.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionPost    Action = "post"
	ActionEngage  Action = "engage"
	ActionRefresh Action = "refresh"
)

// Handler consumes one push event.
type Handler func(push.Event) error

// Log lines for connection changes.
const (
	connectedMessage    = "Connected to bot dashboard"
	disconnectedMessage = "Disconnected from server"
)

func (c *Controller) actionTable() map[Action]func(context.Context) error {
	return map[Action]func(context.Context) error{
		ActionStart:   c.StartBot,
		ActionStop:    c.StopBot,
		ActionPost:    c.ManualPost,
		ActionEngage:  c.ManualEngage,
		ActionRefresh: c.UpdateStats,
	}
}

func (c *Controller) handlerTable() map[string]Handler {
	return map[string]Handler{
		push.EventConnect: func(push.Event) error {
			c.AddLog(connectedMessage)
			return nil
		},
		push.EventDisconnect: func(push.Event) error {
			c.AddLog(disconnectedMessage)
			return nil
		},
		push.EventLogUpdate: func(ev push.Event) error {
			p, err := push.DecodeLogUpdate(ev)
			if err != nil {
				return err
			}
			c.AddLog(p.Message)
			return nil
		},
		push.EventBotStatus: func(ev push.Event) error {
			p, err := push.DecodeBotStatus(ev)
			if err != nil {
				return err
			}
			c.UpdateBotStatus(p.Status)
			return nil
		},
	}
}

// Actions lists the dispatchable actions in name order.
func (c *Controller) Actions() []Action {
	out := make([]Action, 0, len(c.actions))
	for a := range c.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatch runs the operation bound to action.
func (c *Controller) Dispatch(ctx context.Context, action Action) error {
	fn, ok := c.actions[action]
	if !ok {
		return fmt.Errorf("unknown action %q", action)
	}
	return fn(ctx)
}

// Handlers returns the push event dispatch table.
func (c *Controller) Handlers() map[string]Handler {
	out := make(map[string]Handler, len(c.handlers))
	for k, v := range c.handlers {
		out[k] = v
	}
	return out
}

// HandleEvent implements push.Handler. Unknown events are ignored; malformed
// payloads are logged and dropped.
func (c *Controller) HandleEvent(ev push.Event) {
	h, ok := c.handlers[ev.Name]
	if !ok {
		metrics.IncPushEvent("other")
		c.logger.Debug("ignoring push event", "event", ev.Name)
		return
	}
	metrics.IncPushEvent(ev.Name)
	if err := h(ev); err != nil {
		c.logger.Warn("dropping malformed push event", "event", ev.Name, "error", err)
	}
}
