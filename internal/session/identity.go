package session

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names the store a session identity points into.
type Kind string

const (
	KindNone         Kind = ""
	KindDiagram      Kind = "d"
	KindTemplate     Kind = "t"
	KindLiveTemplate Kind = "lt"
)

// ErrMalformedToken reports a session token that cannot be decoded.
var ErrMalformedToken = errors.New("session: malformed token")

// Identity describes which persisted record the working state corresponds to.
// A diagram identity with an empty ID is unresolved until the first save.
type Identity struct {
	Kind Kind
	ID   string
}

// ParseIdentity decodes a token such as "d <id>", "t <id>" or "lt <id>".
// The empty token is a fresh session.
func ParseIdentity(token string) (Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Identity{}, nil
	}
	rawKind, id, _ := strings.Cut(trimmed, " ")
	id = strings.TrimSpace(id)
	switch kind := Kind(rawKind); kind {
	case KindDiagram:
		return Identity{Kind: kind, ID: id}, nil
	case KindTemplate, KindLiveTemplate:
		if id == "" {
			return Identity{}, fmt.Errorf("%w: template token %q without id", ErrMalformedToken, token)
		}
		return Identity{Kind: kind, ID: id}, nil
	default:
		return Identity{}, fmt.Errorf("%w: unknown kind in %q", ErrMalformedToken, token)
	}
}

// Token encodes the identity for the session carrier.
func (i Identity) Token() string {
	switch {
	case i.Kind == KindNone:
		return ""
	case i.ID == "":
		return string(i.Kind)
	default:
		return string(i.Kind) + " " + i.ID
	}
}

// IsTemplate reports whether the identity points at a local template.
func (i Identity) IsTemplate() bool {
	return i.Kind == KindTemplate || i.Kind == KindLiveTemplate
}

func (i Identity) String() string {
	if i.Kind == KindNone {
		return "none"
	}
	return i.Token()
}
