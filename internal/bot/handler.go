// Package bot implements the conversational intake engine: command routing,
// the per-user guided dialog and the stateless free-form path.
package bot

import (
	"context"
	"errors"
	"log/slog"

	"fuelbot/internal/fleet"
	"fuelbot/internal/ledger"
	"fuelbot/internal/parse"
	"fuelbot/internal/record"
	"fuelbot/internal/session"
	"fuelbot/internal/store"
)

// Event is one inbound message, already stripped of transport details.
type Event struct {
	UserID int64
	// User is the acting user's display name, written to the user column.
	User string
	// Text is the message text, or the photo caption when there is no text.
	Text string
	// PhotoURL is the file URL of the largest attached photo, empty if none.
	PhotoURL string
	// Command and Args are set for /command messages; Text holds the rest.
	Command string
	Args    []string
}

// Reply is one outbound message. Keyboard asks the transport to attach the
// action keyboard.
type Reply struct {
	Text     string
	Keyboard bool
}

func replies(texts ...string) []Reply {
	out := make([]Reply, 0, len(texts))
	for _, t := range texts {
		out = append(out, Reply{Text: t})
	}
	return out
}

// Handler drives the dialog state machine. One Handle call processes one
// event to completion; the transport serializes calls per user.
type Handler struct {
	sessions *session.Store
	registry *fleet.Registry
	writer   *record.Writer
	store    store.Store
	logger   *slog.Logger
}

// NewHandler wires the dialog over its collaborators.
func NewHandler(sessions *session.Store, registry *fleet.Registry, writer *record.Writer, st store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions: sessions,
		registry: registry,
		writer:   writer,
		store:    st,
		logger:   logger.With("component", "bot"),
	}
}

// Handle routes one event and returns the replies to send. Routing order:
// cancellation, commands, keyboard buttons (a new selection silently replaces
// any active session), the active session's step, then the free-form parse.
func (h *Handler) Handle(ctx context.Context, ev Event) []Reply {
	if isCancel(ev.Text) {
		if _, ok := h.sessions.Get(ev.UserID); ok {
			h.sessions.Clear(ev.UserID)
			return replies(replyCanceled)
		}
		return nil
	}

	if ev.Command != "" {
		return h.handleCommand(ctx, ev)
	}

	if r, ok := h.handleButton(ev); ok {
		return r
	}

	if sess, ok := h.sessions.Get(ev.UserID); ok {
		return h.handleStep(ctx, ev, sess)
	}

	return h.handleFreeForm(ctx, ev)
}

func (h *Handler) handleCommand(ctx context.Context, ev Event) []Reply {
	switch ev.Command {
	case "start":
		return []Reply{{
			Text:     welcomeReply(h.registry.Known(fleet.KindVehicle), h.registry.Known(fleet.KindGenerator)),
			Keyboard: true,
		}}
	case "templates":
		return replies(templatesReply)
	case "balance":
		if len(ev.Args) == 0 {
			return replies(usageBalance)
		}
		return h.queryBalance(ctx, ev.Args[0])
	case "generator":
		if len(ev.Args) == 0 {
			return replies(usageGenerator)
		}
		return h.queryGeneratorInfo(ctx, ev.Args[0])
	case "history":
		if len(ev.Args) == 0 {
			return replies(usageHistory)
		}
		return h.queryHistory(ctx, ev.Args[0])
	}
	return nil
}

// handleButton matches the fixed keyboard labels. Selecting an action
// overwrites any previous session for the user.
func (h *Handler) handleButton(ev Event) ([]Reply, bool) {
	start := func(action session.Action, prompt string) ([]Reply, bool) {
		h.sessions.Set(ev.UserID, session.Session{Action: action, Step: session.StepAssetID})
		return replies(prompt), true
	}

	switch ev.Text {
	case ButtonPurchase:
		return start(session.ActionPurchase, promptVehicleID)
	case ButtonVehicleRefuel:
		return start(session.ActionVehicleRefuel, promptVehicleID)
	case ButtonGeneratorRefuel:
		return start(session.ActionGeneratorRefuel, promptGeneratorID)
	case ButtonBalance:
		return start(session.ActionBalance, promptVehicleID)
	case ButtonGeneratorInfo:
		return start(session.ActionGeneratorInfo, promptGeneratorID)
	case ButtonHistory:
		return start(session.ActionHistory, promptVehicleID)
	case ButtonTemplates:
		return replies(templatesReply), true
	}
	return nil, false
}

func (h *Handler) handleStep(ctx context.Context, ev Event, sess session.Session) []Reply {
	if sess.Step == session.StepAssetID {
		return h.handleAssetIDStep(ctx, ev, sess)
	}
	return h.handleDetailsStep(ctx, ev, sess)
}

func actionKind(a session.Action) fleet.Kind {
	if a == session.ActionGeneratorRefuel || a == session.ActionGeneratorInfo {
		return fleet.KindGenerator
	}
	return fleet.KindVehicle
}

// handleAssetIDStep validates the entered identifier against the registry.
// On failure the step does not advance; on success query actions run
// immediately and transaction actions move on to the details step.
func (h *Handler) handleAssetIDStep(ctx context.Context, ev Event, sess session.Session) []Reply {
	id := ev.Text
	kind := actionKind(sess.Action)

	if sess.Action == session.ActionHistory {
		// History serves both kinds; the identifier decides which.
		if !h.registry.IsKnown(id, fleet.KindVehicle) && !h.registry.IsKnown(id, fleet.KindGenerator) {
			known := append(h.registry.Known(fleet.KindVehicle), h.registry.Known(fleet.KindGenerator)...)
			return replies(unknownVehicleReply(id, known))
		}
	} else if !h.registry.IsKnown(id, kind) {
		if kind == fleet.KindGenerator {
			return replies(unknownGeneratorReply(id, h.registry.Known(kind)))
		}
		return replies(unknownVehicleReply(id, h.registry.Known(kind)))
	}

	switch sess.Action {
	case session.ActionBalance:
		h.sessions.Clear(ev.UserID)
		return h.queryBalance(ctx, id)
	case session.ActionGeneratorInfo:
		h.sessions.Clear(ev.UserID)
		return h.queryGeneratorInfo(ctx, id)
	case session.ActionHistory:
		h.sessions.Clear(ev.UserID)
		return h.queryHistory(ctx, id)
	}

	sess.AssetID = id
	sess.Step = session.StepDetails
	h.sessions.Set(ev.UserID, sess)

	example := parse.ExamplePurchase
	switch sess.Action {
	case session.ActionVehicleRefuel:
		example = parse.ExampleVehicleRefuel
	case session.ActionGeneratorRefuel:
		example = parse.ExampleGeneratorRefuel
	}
	return replies(detailsPrompt(example))
}

// handleDetailsStep finishes a transaction action. Check order: photo
// presence, then syntax, then constraints; the identifier was already
// validated in the previous step. On parse failure the step does not advance.
func (h *Handler) handleDetailsStep(ctx context.Context, ev Event, sess session.Session) []Reply {
	if ev.PhotoURL == "" {
		return replies(replyMissingPhoto)
	}

	switch sess.Action {
	case session.ActionPurchase:
		p, err := parse.PurchaseDetails(ev.Text)
		if r := parseErrorReply(err); r != nil {
			return r
		}
		p.AssetID = sess.AssetID
		return h.finish(ev.UserID, h.writePurchase(ctx, ev, p))

	case session.ActionVehicleRefuel:
		r, err := parse.VehicleRefuelDetails(ev.Text)
		if rep := parseErrorReply(err); rep != nil {
			return rep
		}
		r.AssetID = sess.AssetID
		return h.finish(ev.UserID, h.writeVehicleRefuel(ctx, ev, r))

	case session.ActionGeneratorRefuel:
		r, err := parse.GeneratorRefuelDetails(ev.Text)
		if rep := parseErrorReply(err); rep != nil {
			return rep
		}
		r.AssetID = sess.AssetID
		return h.finish(ev.UserID, h.writeGeneratorRefuel(ctx, ev, r))
	}

	h.sessions.Clear(ev.UserID)
	return nil
}

// finish clears the session once a write attempt ran, whatever its outcome:
// success completes the flow, a backend failure discards the session so the
// user restarts instead of resuming a half-broken flow.
func (h *Handler) finish(userID int64, r []Reply) []Reply {
	h.sessions.Clear(userID)
	return r
}

// parseErrorReply maps a parse error to its user-visible reply, nil when the
// parse succeeded.
func parseErrorReply(err error) []Reply {
	if err == nil {
		return nil
	}
	var fe *parse.FormatError
	if errors.As(err, &fe) {
		return replies(formatErrorReply(fe.Example))
	}
	var ce *parse.ConstraintError
	if errors.As(err, &ce) {
		return replies(constraintErrorReply(ce.Msg))
	}
	return replies(formatErrorReply(parse.ExamplePurchase))
}

// handleFreeForm is the stateless path: the text is matched against the
// purchase, vehicle-refuel and generator-refuel grammars in order; the first
// grammar that recognizes the message (even with a constraint violation)
// wins. Photo and registry checks run before the constraint error surfaces.
func (h *Handler) handleFreeForm(ctx context.Context, ev Event) []Reply {
	if p, err := parse.PurchaseMessage(ev.Text); grammarMatched(err) {
		if r := h.checkTransaction(ev, p.AssetID, fleet.KindVehicle, err); r != nil {
			return r
		}
		return h.writePurchase(ctx, ev, p)
	}

	if r, err := parse.VehicleRefuelMessage(ev.Text); grammarMatched(err) {
		if rep := h.checkTransaction(ev, r.AssetID, fleet.KindVehicle, err); rep != nil {
			return rep
		}
		return h.writeVehicleRefuel(ctx, ev, r)
	}

	if r, err := parse.GeneratorRefuelMessage(ev.Text); grammarMatched(err) {
		if rep := h.checkTransaction(ev, r.AssetID, fleet.KindGenerator, err); rep != nil {
			return rep
		}
		return h.writeGeneratorRefuel(ctx, ev, r)
	}

	return replies(replyUnrecognized)
}

// grammarMatched reports whether the grammar recognized the message. A
// constraint error counts as a match: the shape was right, a value was not.
func grammarMatched(err error) bool {
	if err == nil {
		return true
	}
	var ce *parse.ConstraintError
	return errors.As(err, &ce)
}

// checkTransaction runs the shared free-form validation chain: photo, then
// registry membership, then the pending constraint error. Returns nil when
// the write may proceed.
func (h *Handler) checkTransaction(ev Event, assetID string, kind fleet.Kind, parseErr error) []Reply {
	if ev.PhotoURL == "" {
		return replies(replyMissingPhoto)
	}
	if !h.registry.IsKnown(assetID, kind) {
		if kind == fleet.KindGenerator {
			return replies(unknownGeneratorReply(assetID, h.registry.Known(kind)))
		}
		return replies(unknownVehicleReply(assetID, h.registry.Known(kind)))
	}
	if parseErr != nil {
		return parseErrorReply(parseErr)
	}
	return nil
}

func (h *Handler) writePurchase(ctx context.Context, ev Event, p parse.Purchase) []Reply {
	table := fleet.TableTitle(fleet.KindVehicle, p.AssetID)
	if _, err := h.writer.AppendPurchase(ctx, table, p, ev.User, ev.PhotoURL); err != nil {
		h.logger.Error("purchase write failed", "table", table, "error", err)
		return replies(replyWriteFailed)
	}
	return replies(purchaseConfirmation(p, p.AssetID))
}

func (h *Handler) writeVehicleRefuel(ctx context.Context, ev Event, r parse.VehicleRefuel) []Reply {
	table := fleet.TableTitle(fleet.KindVehicle, r.AssetID)
	if _, err := h.writer.AppendVehicleRefuel(ctx, table, r, ev.User, ev.PhotoURL); err != nil {
		h.logger.Error("refuel write failed", "table", table, "error", err)
		return replies(replyWriteFailed)
	}

	// Read the stock balance back so the confirmation reflects this refuel.
	// The row is already written; a failed read-back only drops the balance
	// line from the reply.
	var balance *float64
	rows, err := h.store.ReadRows(ctx, table)
	if err != nil {
		h.logger.Warn("balance read-back failed", "table", table, "error", err)
	} else {
		b := ledger.Vehicle(rows).Balance
		balance = &b
	}
	return replies(vehicleRefuelConfirmation(r, balance))
}

func (h *Handler) writeGeneratorRefuel(ctx context.Context, ev Event, r parse.GeneratorRefuel) []Reply {
	table := fleet.TableTitle(fleet.KindGenerator, r.AssetID)
	if _, err := h.writer.AppendGeneratorRefuel(ctx, table, r, ev.User, ev.PhotoURL); err != nil {
		h.logger.Error("generator refuel write failed", "table", table, "error", err)
		return replies(replyWriteFailed)
	}
	return replies(generatorRefuelConfirmation(r, r.AssetID))
}

func (h *Handler) queryBalance(ctx context.Context, id string) []Reply {
	if !h.registry.IsKnown(id, fleet.KindVehicle) {
		return replies(unknownVehicleReply(id, h.registry.Known(fleet.KindVehicle)))
	}
	rows, err := h.store.ReadRows(ctx, fleet.TableTitle(fleet.KindVehicle, id))
	if err != nil {
		h.logger.Error("balance read failed", "asset", id, "error", err)
		return replies(replyReadFailed)
	}
	if len(rows) == 0 {
		return replies(noVehicleDataReply(id))
	}
	return replies(balanceReply(id, ledger.Vehicle(rows)))
}

func (h *Handler) queryGeneratorInfo(ctx context.Context, id string) []Reply {
	if !h.registry.IsKnown(id, fleet.KindGenerator) {
		return replies(unknownGeneratorReply(id, h.registry.Known(fleet.KindGenerator)))
	}
	rows, err := h.store.ReadRows(ctx, fleet.TableTitle(fleet.KindGenerator, id))
	if err != nil {
		h.logger.Error("generator info read failed", "asset", id, "error", err)
		return replies(replyReadFailed)
	}
	if len(rows) == 0 {
		return replies(noGeneratorDataReply(id))
	}
	return replies(generatorInfoReply(id, ledger.Generator(rows), ledger.LastN(rows, 5)))
}

// queryHistory serves both asset kinds; vehicles shadow generators when an
// identifier is registered under both.
func (h *Handler) queryHistory(ctx context.Context, id string) []Reply {
	switch {
	case h.registry.IsKnown(id, fleet.KindVehicle):
		rows, err := h.store.ReadRows(ctx, fleet.TableTitle(fleet.KindVehicle, id))
		if err != nil {
			h.logger.Error("history read failed", "asset", id, "error", err)
			return replies(replyReadFailed)
		}
		if len(rows) == 0 {
			return replies(noVehicleDataReply(id))
		}
		return replies(vehicleHistoryReply(id, ledger.LastN(rows, 5)))

	case h.registry.IsKnown(id, fleet.KindGenerator):
		rows, err := h.store.ReadRows(ctx, fleet.TableTitle(fleet.KindGenerator, id))
		if err != nil {
			h.logger.Error("history read failed", "asset", id, "error", err)
			return replies(replyReadFailed)
		}
		if len(rows) == 0 {
			return replies(noGeneratorDataReply(id))
		}
		return replies(generatorHistoryReply(id, ledger.LastN(rows, 5)))
	}

	known := append(h.registry.Known(fleet.KindVehicle), h.registry.Known(fleet.KindGenerator)...)
	return replies(unknownVehicleReply(id, known))
}
