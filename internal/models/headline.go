package models

import (
	"encoding/json"
	"fmt"
)

// Stored field names, shared by every store backend and by query filters.
const (
	FieldText       = "headline_text"
	FieldEntities   = "entities"
	FieldEntityText = "entities.text"
	FieldEntityType = "entities.type"
	FieldSentiment  = "sentimentLabel"
)

// EntityType is the category of a named-entity mention.
type EntityType string

const (
	EntityPerson   EntityType = "PERSON"
	EntityOrg      EntityType = "ORG"
	EntityLocation EntityType = "LOCATION"
)

// Allowed reports whether mentions of this type are kept in stored annotations.
func (t EntityType) Allowed() bool {
	switch t {
	case EntityPerson, EntityOrg, EntityLocation:
		return true
	default:
		return false
	}
}

// EntityMention is one extracted named entity.
type EntityMention struct {
	Type EntityType `json:"type"`
	Text string     `json:"text"`
}

// SentimentLabel is the coarse polarity derived from a sentiment score.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Annotations are the enrichment fields. They are always written together.
type Annotations struct {
	Entities       []EntityMention `json:"entities"`
	SentimentLabel SentimentLabel  `json:"sentimentLabel"`
}

// Headline is one stored input record.
//
// ID is assigned by the store and never serialized into the document body.
// Columns carries every input column besides the text column unchanged.
// Entities and SentimentLabel stay empty until the document is enriched.
type Headline struct {
	ID             string
	Text           string
	Columns        map[string]string
	Entities       []EntityMention
	SentimentLabel SentimentLabel
}

// Enriched reports whether annotations have been written for the document.
func (h Headline) Enriched() bool {
	return h.SentimentLabel != ""
}

// Annotations returns the enrichment fields of the document.
func (h Headline) Annotations() Annotations {
	return Annotations{Entities: h.Entities, SentimentLabel: h.SentimentLabel}
}

// ReservedColumn reports whether name collides with a stored field.
func ReservedColumn(name string) bool {
	switch name {
	case FieldText, FieldEntities, FieldSentiment, "_id":
		return true
	default:
		return false
	}
}

// MarshalJSON flattens Columns next to the stored fields, the way the document
// body is laid out in every backend.
func (h Headline) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(h.Columns)+3)
	for k, v := range h.Columns {
		body[k] = v
	}
	body[FieldText] = h.Text
	if h.Enriched() {
		entities := h.Entities
		if entities == nil {
			entities = []EntityMention{}
		}
		body[FieldEntities] = entities
		body[FieldSentiment] = h.SentimentLabel
	}
	return json.Marshal(body)
}

// UnmarshalJSON reverses MarshalJSON. Non-string column values are kept in
// their JSON text form.
func (h *Headline) UnmarshalJSON(data []byte) error {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}

	out := Headline{ID: h.ID}
	for k, raw := range body {
		switch k {
		case FieldText:
			if err := json.Unmarshal(raw, &out.Text); err != nil {
				return fmt.Errorf("decode %s: %w", FieldText, err)
			}
		case FieldEntities:
			if err := json.Unmarshal(raw, &out.Entities); err != nil {
				return fmt.Errorf("decode %s: %w", FieldEntities, err)
			}
			if out.Entities == nil {
				out.Entities = []EntityMention{}
			}
		case FieldSentiment:
			if err := json.Unmarshal(raw, &out.SentimentLabel); err != nil {
				return fmt.Errorf("decode %s: %w", FieldSentiment, err)
			}
		default:
			if out.Columns == nil {
				out.Columns = make(map[string]string)
			}
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				s = string(raw)
			}
			out.Columns[k] = s
		}
	}

	*h = out
	return nil
}
