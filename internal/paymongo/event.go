package paymongo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventCheckoutSessionPaid = "checkout_session.payment.paid"
	EventPaymentPaid         = "payment.paid"
	EventPaymentFailed       = "payment.failed"
)

// transactionIDKeys are the metadata spellings seen from older app builds.
var transactionIDKeys = []string{"transaction_id", "transactionId", "transactionID"}

type Event struct {
	ID            string
	Type          string
	Livemode      bool
	ResourceID    string
	TransactionID string
}

type metadata map[string]any

type eventEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type     string `json:"type"`
			Livemode bool   `json:"livemode"`
			Data     struct {
				ID         string `json:"id"`
				Attributes struct {
					Metadata metadata `json:"metadata"`
					Payments []struct {
						Attributes struct {
							Metadata metadata `json:"metadata"`
						} `json:"attributes"`
					} `json:"payments"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body. TransactionID is empty when the
// resource carries none.
func ParseEvent(body []byte) (*Event, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env eventEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	attrs := env.Data.Attributes
	ev := &Event{
		ID:         env.Data.ID,
		Type:       attrs.Type,
		Livemode:   attrs.Livemode,
		ResourceID: attrs.Data.ID,
	}

	ev.TransactionID = attrs.Data.Attributes.Metadata.transactionID()
	if ev.TransactionID == "" {
		for _, p := range attrs.Data.Attributes.Payments {
			if id := p.Attributes.Metadata.transactionID(); id != "" {
				ev.TransactionID = id
				break
			}
		}
	}
	return ev, nil
}

func (m metadata) transactionID() string {
	for _, key := range transactionIDKeys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	return ""
}
