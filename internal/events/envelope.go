package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/internal/apperr"
)

// EnvelopeVersion is the only envelope version consumers accept.
const EnvelopeVersion = 1

// Envelope is the common wrapper for every message on the channel. Type is the
// discriminator that selects the handler; PartitionKey is the order id.
type Envelope struct {
	Type          string          `json:"type"`
	Version       int             `json:"version"`
	EventID       string          `json:"eventId"`
	CorrelationID string          `json:"correlationId,omitempty"`
	CausationID   string          `json:"causationId,omitempty"`
	Producer      string          `json:"producer"`
	PartitionKey  string          `json:"partitionKey"`
	Sequence      *int64          `json:"sequence,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Payload       json.RawMessage `json:"payload"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewEnvelope wraps payload for publishing. Correlation and causation are taken
// from ctx when present; a fresh correlation id is generated otherwise.
func NewEnvelope(ctx context.Context, msgType, partitionKey string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}

	meta := MetaFrom(ctx)
	if meta.CorrelationID == "" {
		meta.CorrelationID = uuid.NewString()
	}

	return Envelope{
		Type:          msgType,
		Version:       EnvelopeVersion,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		PartitionKey:  partitionKey,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}, nil
}

// Validate checks the envelope identity fields.
func (e Envelope) Validate() error {
	if e.Type == "" {
		return errors.New("missing type")
	}
	if e.Version != EnvelopeVersion {
		return fmt.Errorf("unsupported version %d", e.Version)
	}
	if e.EventID == "" {
		return errors.New("missing eventId")
	}
	if e.PartitionKey == "" {
		return errors.New("missing partitionKey")
	}
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New("missing payload")
	}
	return nil
}

// ParseEnvelope decodes and validates a delivery body.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, apperr.Validation("malformed envelope: " + err.Error())
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, apperr.Validation("invalid envelope: " + err.Error())
	}
	return env, nil
}

// Decode unmarshals the payload into T and runs its validate tags.
func Decode[T any](env Envelope) (T, error) {
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, apperr.Validation(fmt.Sprintf("malformed %s payload", env.Type), err.Error())
	}
	if err := validate.Struct(v); err != nil {
		return v, apperr.Validation(fmt.Sprintf("invalid %s payload", env.Type), fieldErrors(err)...)
	}
	return v, nil
}

func fieldErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return out
}

type metaKey struct{}

// Meta carries tracing identifiers between a consumed message, or HTTP request,
// and the messages it causes.
type Meta struct {
	CorrelationID string
	CausationID   string
}

func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

func MetaFrom(ctx context.Context) Meta {
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}
