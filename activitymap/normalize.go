package activitymap

import (
	"strings"
	"time"

	admin "github.com/goliatone/go-admin"
)

const (
	// MetadataKeyActorType stores whether the actor was a user, a token or the system.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyRequestMethod stores the HTTP method of request-level entries.
	MetadataKeyRequestMethod = "request_method"
	// MetadataKeyRequestPath stores the HTTP path of request-level entries.
	MetadataKeyRequestPath = "request_path"
	// MetadataKeyResponseStatus stores the response status of request-level entries.
	MetadataKeyResponseStatus = "response_status"
)

const (
	ChannelAuth    = "auth"
	ChannelAdmin   = "admin"
	ChannelRequest = "http"

	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape for dashboards and exports.
type Normalized struct {
	ID         int64          `json:"id"`
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
}

// Normalize converts an audit entry into the normalized shape.
func Normalize(entry admin.AuditEntry, opts ...Option) Normalized {
	options := normalizeOptions{
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(entry.ActorRef()),
		strings.TrimSpace(options.actorFallback),
	)

	objectType := firstNonEmpty(strings.TrimSpace(entry.ResourceType), options.objectType)
	if entry.ResourceID == "" && entry.ResourceType == "" {
		objectType = ""
	}

	occurredAt := entry.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ID:         entry.ID,
		ActorID:    actorID,
		Verb:       entry.Action,
		ObjectType: objectType,
		ObjectID:   strings.TrimSpace(entry.ResourceID),
		Channel:    firstNonEmpty(options.channel, channelFor(entry)),
		Metadata:   normalizeMetadata(entry),
		OccurredAt: occurredAt,
	}
}

// NormalizeAll maps entries in order.
func NormalizeAll(entries []*admin.AuditEntry, opts ...Option) []Normalized {
	out := make([]Normalized, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		out = append(out, Normalize(*entry, opts...))
	}
	return out
}

// WithChannel forces the channel instead of deriving it from the action.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type used when an entry with a
// resource id has no resource type.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the entry has no actor.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

func channelFor(entry admin.AuditEntry) string {
	switch {
	case strings.HasPrefix(entry.Action, "auth."):
		return ChannelAuth
	case entry.RequestMethod != "" || entry.RequestPath != "":
		return ChannelRequest
	default:
		return ChannelAdmin
	}
}

func actorType(entry admin.AuditEntry) string {
	switch {
	case entry.ActorUserID != nil && *entry.ActorUserID != "":
		return "user"
	case entry.ActorTokenID != nil && *entry.ActorTokenID != "":
		return "token"
	default:
		return "system"
	}
}

func normalizeMetadata(entry admin.AuditEntry) map[string]any {
	metadata := make(map[string]any, len(entry.Metadata)+4)
	for key, value := range entry.Metadata {
		metadata[key] = value
	}

	if _, exists := metadata[MetadataKeyActorType]; !exists {
		metadata[MetadataKeyActorType] = actorType(entry)
	}

	if entry.RequestMethod != "" {
		metadata[MetadataKeyRequestMethod] = entry.RequestMethod
	}
	if entry.RequestPath != "" {
		metadata[MetadataKeyRequestPath] = entry.RequestPath
	}
	if entry.ResponseStatus != 0 {
		metadata[MetadataKeyResponseStatus] = entry.ResponseStatus
	}

	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
