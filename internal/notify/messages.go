package notify

import (
	"fmt"

	"bid-broker/internal/model"
)

// Event identifies which negotiation transition a notification announces.
type Event string

const (
	EventApproved        Event = "approved"
	EventRejected        Event = "rejected"
	EventCounterOffer    Event = "counter_offer"
	EventCounterRejected Event = "counter_rejected"
	EventWon             Event = "won"
	EventLost            Event = "lost"
	EventCustomerUpdate  Event = "customer_update"
)

type template struct {
	title string
	body  string // fmt template receiving the product title
}

// Customer-facing texts keyed by event and locale. Portuguese falls back to
// Spanish for any missing entry.
var catalog = map[Event]map[model.Language]template{
	EventApproved: {
		model.LanguageSpanish:    {"Oferta aprobada", "Tu oferta por \"%s\" fue aprobada. Pujaremos hasta tu máximo."},
		model.LanguagePortuguese: {"Oferta aprovada", "Sua oferta por \"%s\" foi aprovada. Daremos lances até o seu máximo."},
	},
	EventRejected: {
		model.LanguageSpanish:    {"Oferta rechazada", "Tu oferta por \"%s\" fue rechazada."},
		model.LanguagePortuguese: {"Oferta recusada", "Sua oferta por \"%s\" foi recusada."},
	},
	EventCounterOffer: {
		model.LanguageSpanish:    {"Contraoferta recibida", "Recibiste una contraoferta por \"%s\". Revísala y responde."},
		model.LanguagePortuguese: {"Contraproposta recebida", "Você recebeu uma contraproposta por \"%s\". Revise e responda."},
	},
	EventCounterRejected: {
		model.LanguageSpanish:    {"Contraoferta rechazada", "Tu contraoferta por \"%s\" fue rechazada."},
		model.LanguagePortuguese: {"Contraproposta recusada", "Sua contraproposta por \"%s\" foi recusada."},
	},
	EventWon: {
		model.LanguageSpanish:    {"¡Subasta ganada!", "¡Ganamos la subasta de \"%s\"! Revisa el precio final y confirma."},
		model.LanguagePortuguese: {"Leilão ganho!", "Ganhamos o leilão de \"%s\"! Confira o preço final e confirme."},
	},
	EventLost: {
		model.LanguageSpanish:    {"Subasta perdida", "No ganamos la subasta de \"%s\". Lo sentimos."},
		model.LanguagePortuguese: {"Leilão perdido", "Não ganhamos o leilão de \"%s\". Sentimos muito."},
	},
}

// ForCustomer builds the localized message announcing event to the record's
// customer.
func ForCustomer(event Event, req *model.BidRequest) Message {
	lang := req.Language
	if !lang.Valid() {
		lang = model.LanguageSpanish
	}

	tmpl, ok := catalog[event][lang]
	if !ok {
		tmpl = catalog[event][model.LanguageSpanish]
	}

	return Message{
		Recipient: req.CustomerEmail,
		Title:     tmpl.title,
		Body:      fmt.Sprintf(tmpl.body, req.ProductTitle),
		URL:       req.ProductURL,
	}
}

// ForAdmin builds the message alerting the admin that a customer acted on a
// record. Admin-side texts are not localized. The admin's WhatsApp number,
// when configured, rides along so phone-based channels can deliver too.
func ForAdmin(admin AdminContact, req *model.BidRequest, action string) Message {
	return Message{
		Recipient: admin.Email,
		Phone:     admin.Phone,
		Title:     "Bid request updated",
		Body:      fmt.Sprintf("%s (%s) %s on \"%s\"", req.CustomerName, req.CustomerEmail, action, req.ProductTitle),
		URL:       req.ProductURL,
	}
}
