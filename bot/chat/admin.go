package chat

import (
	"FrappeBot/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

var (
	talkToCommand = regexp.MustCompile(`^hablar con\s+(.+)$`)
	resetCommand  = regexp.MustCompile(`^reiniciar\s+(.+)$`)
	statusCommand = regexp.MustCompile(`^estado\s+(.+)$`)
)

func isEndChat(text string) bool {
	return normalize(text) == "terminar chat"
}

// handleAdminCommand runs an admin text command and reports whether text was one.
// Inside a bridge only "terminar chat" and a switch to another valid number
// count as commands; anything else is relayed to the customer.
func (e *Engine) handleAdminCommand(ctx context.Context, log *slog.Logger, state *State, text string) bool {
	cmd := normalize(text)

	if state.Mode == ModeChatting {
		if isEndChat(cmd) {
			e.endBridge(ctx, log, state)
			return true
		}
		if m := talkToCommand.FindStringSubmatch(cmd); m != nil && IsValidPhone(m[1]) {
			e.startBridge(ctx, log, state, NormalizePhone(m[1]))
			return true
		}
		return false
	}

	if m := talkToCommand.FindStringSubmatch(cmd); m != nil {
		target, ok := e.adminTarget(ctx, log, state.Phone, m[1])
		if ok {
			e.startBridge(ctx, log, state, target)
		}
		return true
	}
	if m := resetCommand.FindStringSubmatch(cmd); m != nil {
		target, ok := e.adminTarget(ctx, log, state.Phone, m[1])
		if ok {
			e.drop(ctx, log, target)
			log.With(slog.String("target", target)).Info("conversation reset by admin")
			e.sendText(ctx, log, state.Phone, fmt.Sprintf("Conversación de +%s reiniciada. ✅", target))
		}
		return true
	}
	if m := statusCommand.FindStringSubmatch(cmd); m != nil {
		target, ok := e.adminTarget(ctx, log, state.Phone, m[1])
		if ok {
			e.sendText(ctx, log, state.Phone, e.describe(ctx, log, target))
		}
		return true
	}
	return false
}

func (e *Engine) adminTarget(ctx context.Context, log *slog.Logger, admin, raw string) (string, bool) {
	if !IsValidPhone(raw) {
		e.sendText(ctx, log, admin, "Número inválido. Usa el formato internacional, por ejemplo: 5215512345678")
		return "", false
	}
	return NormalizePhone(raw), true
}

// startBridge links admin and customer. Whatever order the customer had in
// progress is overwritten.
func (e *Engine) startBridge(ctx context.Context, log *slog.Logger, state *State, target string) {
	if state.Mode == ModeChatting && state.TargetUser != "" && state.TargetUser != target {
		e.drop(ctx, log, state.TargetUser)
	}

	customer := &State{
		Phone: target,
		Step:  StepInitial,
		Mode:  ModeWithAdmin,
		Admin: state.Phone,
	}
	e.save(ctx, log, customer)

	*state = State{
		Phone:         state.Phone,
		Step:          StepInitial,
		Mode:          ModeChatting,
		TargetUser:    target,
		LastMessageID: state.LastMessageID,
	}
	e.save(ctx, log, state)

	log.With(slog.String("target", target)).Info("admin bridge opened")
	e.sendText(ctx, log, state.Phone, fmt.Sprintf("🔗 Conectado con +%s. Todo lo que escribas se enviará al cliente. Escribe *terminar chat* para salir.", target))
	e.sendText(ctx, log, target, fmt.Sprintf("👋 Un asesor de %s se unió a la conversación.", e.settings.Name))
}

func (e *Engine) endBridge(ctx context.Context, log *slog.Logger, state *State) {
	other := state.Counterpart()
	e.drop(ctx, log, state.Phone)
	if other != "" {
		e.drop(ctx, log, other)
	}

	log.With(slog.String("counterpart", other)).Info("admin bridge closed")
	e.sendText(ctx, log, state.Phone, "Chat finalizado. ✅")
	if other != "" {
		e.sendText(ctx, log, other, "Chat finalizado. ✅")
	}
}

// relay passes a message across the bridge unchanged.
func (e *Engine) relay(ctx context.Context, log *slog.Logger, state *State, msg Message) {
	to := state.Counterpart()
	if to == "" {
		log.Warn("bridge without counterpart, closing")
		e.drop(ctx, log, state.Phone)
		e.sendText(ctx, log, state.Phone, textGeneralAck)
		return
	}

	var err error
	switch msg.Type {
	case TypeImage:
		if msg.Image != nil {
			err = e.gateway.SendImage(ctx, to, msg.Image.ID, msg.Image.Caption)
		}
	case TypeText:
		err = e.gateway.SendText(ctx, to, msg.Text)
	default:
		err = e.gateway.SendText(ctx, to, msg.Summary())
	}
	if err != nil {
		log.With(sl.Err(err), slog.String("to", to)).Warn("bridge relay")
	}
}

func (e *Engine) describe(ctx context.Context, log *slog.Logger, phone string) string {
	state, err := e.storage.Load(ctx, phone)
	if err != nil {
		log.With(sl.Err(err)).Error("load state for admin")
		return "No se pudo leer la conversación."
	}
	if state == nil {
		return fmt.Sprintf("+%s no tiene conversación activa.", phone)
	}
	text := fmt.Sprintf("+%s\nPaso: %s", phone, state.Step)
	if state.Mode != ModeNone {
		text += fmt.Sprintf("\nModo: %s", state.Mode)
	}
	if state.Address != "" {
		text += fmt.Sprintf("\nDirección: %s", state.Address)
	}
	if state.PaymentMethod != "" {
		text += fmt.Sprintf("\nPago: %s", state.PaymentMethod)
	}
	return text
}
