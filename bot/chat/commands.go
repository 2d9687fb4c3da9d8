package chat

import (
	"FrappeBot/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
)

type command func(ctx context.Context, log *slog.Logger, state *State, msg Message)

func (e *Engine) commandTable() map[string]command {
	welcome := func(ctx context.Context, log *slog.Logger, state *State, _ Message) {
		e.sendInteractive(ctx, log, state.Phone, e.settings.welcome())
	}
	return map[string]command{
		"hola":   welcome,
		"buenas": welcome,
		"menu":   welcome,
		"horario": func(ctx context.Context, log *slog.Logger, state *State, _ Message) {
			e.sendText(ctx, log, state.Phone, e.settings.hours())
		},
		"ayuda": func(ctx context.Context, log *slog.Logger, state *State, _ Message) {
			e.sendText(ctx, log, state.Phone, e.settings.help())
		},
		"asesor": e.requestHuman,
	}
}

// handleCommand runs the command of the first keyword found in text.
func (e *Engine) handleCommand(ctx context.Context, log *slog.Logger, state *State, msg Message, text string) bool {
	for _, w := range words(text) {
		if cmd, ok := e.commands[w]; ok {
			log.With(slog.String("command", w)).Debug("keyword command")
			cmd(ctx, log, state, msg)
			return true
		}
	}
	return false
}

// handleGlobalButton answers buttons that work at any point of the conversation.
func (e *Engine) handleGlobalButton(ctx context.Context, log *slog.Logger, state *State, msg Message, id string) bool {
	switch id {
	case ButtonMenu:
		e.sendText(ctx, log, state.Phone, e.settings.menu())
	case ButtonHours:
		e.sendText(ctx, log, state.Phone, e.settings.hours())
	case ButtonHuman:
		e.requestHuman(ctx, log, state, msg)
	default:
		return false
	}
	return true
}

func (e *Engine) requestHuman(ctx context.Context, log *slog.Logger, state *State, msg Message) {
	name := msg.ProfileName
	if name == "" {
		name = "Cliente"
	}
	e.notifyAdmins(ctx, log, fmt.Sprintf("🙋 %s (+%s) pidió hablar con un asesor.\nPara responder escribe: hablar con %s", name, state.Phone, state.Phone))
	e.sendText(ctx, log, state.Phone, textHumanRequested)
}

func (e *Engine) fallback(ctx context.Context, log *slog.Logger, state *State, text string) error {
	if e.assistant == nil || text == "" {
		e.sendText(ctx, log, state.Phone, textGeneralAck)
		return nil
	}
	reply, err := e.assistant.Reply(ctx, state.Phone, text)
	if err != nil || reply == "" {
		if err != nil {
			log.With(sl.Err(err)).Warn("assistant reply")
		}
		e.sendText(ctx, log, state.Phone, textGeneralAck)
		return nil
	}
	e.sendText(ctx, log, state.Phone, reply)
	return nil
}
