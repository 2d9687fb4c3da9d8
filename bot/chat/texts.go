package chat

import (
	"FrappeBot/bot/order"
	"fmt"
	"strings"
)

const (
	ButtonLocationSkip    = "location_skip"
	ButtonAccessCodeYes   = "access_code_yes"
	ButtonAccessCodeNo    = "access_code_no"
	ButtonPaymentCash     = "payment_cash"
	ButtonPaymentTransfer = "payment_transfer"
	ButtonMenu            = "ver_menu"
	ButtonHours           = "horario"
	ButtonHuman           = "hablar_con_humano"

	textApology          = "Lo sentimos, ocurrió un problema al procesar tu mensaje. Por favor intenta de nuevo en unos minutos. 🙏"
	textAskAddress       = "¿A qué dirección enviamos tu pedido? Escribe calle, número, colonia y alguna referencia. 🏠"
	textAskAddressAgain  = "Ya tenemos tu pedido 😊 Ahora necesitamos tu dirección de entrega: calle, número, colonia y alguna referencia."
	textAskLocationAgain = "Comparte tu ubicación desde el clip 📎 > Ubicación, o toca *Omitir* para continuar."
	textAskAccessAgain   = "Por favor responde *Sí* o *No*: ¿tu domicilio requiere código de acceso?"
	textAskPaymentAgain  = "Elige tu forma de pago: *Efectivo* o *Transferencia*."
	textAskCashAgain     = "Escribe solo el monto del billete con el que pagarás, por ejemplo: 200"
	textAwaitingProof    = "Estamos esperando la *imagen* de tu comprobante de transferencia para confirmar tu pedido. 🧾"
	textImageAck         = "¡Gracias por la imagen! Si quieres hacer un pedido, escribe *menú*. 😊"
	textLocationAck      = "¡Gracias por tu ubicación! Para pedir, arma tu orden en el menú y envíanosla por aquí. 📍"
	textGeneralAck       = "¡Gracias por tu mensaje! Escribe *menú* para ver nuestras bebidas o *ayuda* para ver las opciones."
	textCancelled        = "Tu pedido fue cancelado. Cuando quieras, vuelve a enviarnos tu orden desde el menú. 👋"
	textNothingToCancel  = "No tienes ningún pedido en curso."
	textOrderLost        = "No encontramos tu pedido en curso 😕 Por favor envíalo de nuevo desde el menú."
	textHumanRequested   = "Listo, avisamos a nuestro equipo. Un asesor te escribirá en breve. 🙋"
)

// Settings are the business details the bot quotes to customers.
type Settings struct {
	Name            string
	MenuURL         string
	Hours           string
	BankDetails     string
	RequestLocation bool
	Admins          []string
}

func (s *Settings) welcome() Interactive {
	return Interactive{
		Body: fmt.Sprintf("¡Hola! 👋 Bienvenido a %s.\n\nArma tu pedido en nuestro menú y envíanos el resumen por aquí:\n%s", s.Name, s.MenuURL),
		Buttons: []Button{
			{ID: ButtonMenu, Title: "Ver menú"},
			{ID: ButtonHours, Title: "Horario"},
			{ID: ButtonHuman, Title: "Hablar con asesor"},
		},
	}
}

func (s *Settings) menu() string {
	return fmt.Sprintf("Este es nuestro menú 🧋\n%s\n\nCuando termines, envíanos el resumen de tu pedido por aquí.", s.MenuURL)
}

func (s *Settings) hours() string {
	return fmt.Sprintf("🕒 Nuestro horario: %s", s.Hours)
}

func (s *Settings) help() string {
	return strings.Join([]string{
		"Puedo ayudarte con:",
		"• *menú* para ver nuestras bebidas",
		"• *horario* para conocer cuándo abrimos",
		"• *cancelar* para cancelar un pedido en curso",
		"Para pedir, envíanos el resumen que genera el menú. 😊",
	}, "\n")
}

func (s *Settings) bankDetails(total float64) string {
	return fmt.Sprintf("Estos son nuestros datos para transferencia 🏦\n\n%s\n\nMonto: %s\n\nCuando realices el pago, envía aquí la *imagen* del comprobante.", s.BankDetails, order.FormatMoney(total))
}

func orderReceived(info order.Info) string {
	var b strings.Builder
	b.WriteString("¡Recibimos tu pedido! 🧋\n\n")
	if info.Summary != "" {
		b.WriteString(info.Summary)
		b.WriteString("\n\n")
	}
	if info.Total > 0 {
		fmt.Fprintf(&b, "Total: %s\n\n", order.FormatMoney(info.Total))
	}
	b.WriteString(textAskAddress)
	return b.String()
}

func askLocation() Interactive {
	return Interactive{
		Body:    "¿Puedes compartir tu ubicación para llegar más rápido? 📍\nUsa el clip 📎 > Ubicación.",
		Buttons: []Button{{ID: ButtonLocationSkip, Title: "Omitir"}},
	}
}

func askAccessCode() Interactive {
	return Interactive{
		Body: "¿Tu domicilio requiere código de acceso o registro en caseta? 🔐",
		Buttons: []Button{
			{ID: ButtonAccessCodeYes, Title: "Sí"},
			{ID: ButtonAccessCodeNo, Title: "No"},
		},
	}
}

func askPaymentMethod() Interactive {
	return Interactive{
		Body: "¿Cómo deseas pagar? 💳",
		Buttons: []Button{
			{ID: ButtonPaymentCash, Title: "Efectivo"},
			{ID: ButtonPaymentTransfer, Title: "Transferencia"},
		},
	}
}

func askCashDenomination(total float64) string {
	if total > 0 {
		return fmt.Sprintf("Tu total es %s. ¿Con qué billete pagarás? Escribe el monto, por ejemplo: 200 💵", order.FormatMoney(total))
	}
	return "¿Con qué billete pagarás? Escribe el monto, por ejemplo: 200 💵"
}
