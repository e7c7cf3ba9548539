// Package payload decodes the platform's webhook envelope and maps it to
// flat store records. The wire format is loosely typed: nested objects may
// be missing, dates use a zero sentinel, and numeric ids are sometimes
// sent as strings. Every mapping rule here degrades to an absent value
// rather than failing.
package payload

import (
	"encoding/json"
	"fmt"
	"strings"

	"blinghook/internal/store"
)

// EventPrefix selects the event family this service handles. Everything
// else is acknowledged and dropped.
const EventPrefix = "order."

// zeroDate is the platform's "no date" sentinel.
const zeroDate = "0000-00-00"

// ValidationError reports a payload that decoded but cannot produce a
// usable record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Reason)
}

// FlexID is an identifier the platform encodes as either a JSON string or
// a JSON number. Both decode to the same string form, so status id 7 and
// "7" compare equal once stored.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// Ref is a nested sub-object carrying only an identifier.
type Ref struct {
	ID FlexID `json:"id"`
}

// Envelope is the outer webhook body.
type Envelope struct {
	Event string       `json:"event"`
	Data  OrderPayload `json:"data"`
}

// OrderPayload is the order detail object inside the envelope.
type OrderPayload struct {
	ID           FlexID   `json:"id"`
	Numero       *string  `json:"numero"`
	Loja         *Ref     `json:"loja"`
	NotaFiscal   *Ref     `json:"notaFiscal"`
	Data         *string  `json:"data"`
	DataSaida    *string  `json:"dataSaida"`
	DataPrevista *string  `json:"dataPrevista"`
	Total        *float64 `json:"total"`
	Situacao     *Ref     `json:"situacao"`
	Desconto     *struct {
		Valor *float64 `json:"valor"`
	} `json:"desconto"`
	Itens []ItemPayload `json:"itens"`
}

// ItemPayload is one entry of the order's item list.
type ItemPayload struct {
	Codigo     *string  `json:"codigo"`
	Quantidade *int64   `json:"quantidade"`
	Valor      *float64 `json:"valor"`
	Descricao  *string  `json:"descricao"`
}

// Decode parses a raw webhook body into an Envelope.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// AcceptsEvent reports whether the event class belongs to the order
// family this service reconciles.
func AcceptsEvent(event string) bool {
	return strings.HasPrefix(event, EventPrefix)
}

// Normalize maps the order detail object to a store Order and its line
// items. Item rows come back without an owner id; Reconcile attaches the
// internal id once the parent row exists.
func Normalize(env Envelope) (store.Order, []store.OrderItem, error) {
	d := env.Data
	if d.ID == "" {
		return store.Order{}, nil, &ValidationError{Field: "data.id", Reason: "missing order id"}
	}

	order := store.Order{
		ExternalID:   string(d.ID),
		OrderNumber:  d.Numero,
		StoreID:      refID(d.Loja),
		InvoiceID:    refID(d.NotaFiscal),
		OrderDate:    normalizeDate(d.Data),
		ShipDate:     normalizeDate(d.DataSaida),
		DeliveryDate: normalizeDate(d.DataPrevista),
	}
	if d.Total != nil {
		order.TotalValue = *d.Total
	}
	if d.Situacao != nil {
		order.StatusID = string(d.Situacao.ID)
	}
	if d.Desconto != nil {
		order.DiscountValue = d.Desconto.Valor
	}

	items := make([]store.OrderItem, 0, len(d.Itens))
	for _, it := range d.Itens {
		item := store.OrderItem{}
		if it.Codigo != nil {
			item.SKU = *it.Codigo
		}
		if it.Quantidade != nil {
			item.Quantity = *it.Quantidade
		}
		if it.Valor != nil {
			item.UnitValue = *it.Valor
		}
		if it.Descricao != nil {
			item.Description = *it.Descricao
		}
		items = append(items, item)
	}
	return order, items, nil
}

// normalizeDate treats the empty string and the platform's zero-date
// sentinel as absent. Anything else passes through untouched; type
// coercion or rejection is the store's concern.
func normalizeDate(s *string) *string {
	if s == nil || *s == "" || *s == zeroDate {
		return nil
	}
	return s
}

func refID(r *Ref) *string {
	if r == nil || r.ID == "" {
		return nil
	}
	s := string(r.ID)
	return &s
}
