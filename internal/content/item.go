// Package content holds the lifecycle and access-control rules for
// educational content items: the status machine, the ownership resolver,
// the visibility predicate and the append-only history.
package content

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"aula/api/internal/rbac"
)

type Kind string

const (
	KindTopic   Kind = "topic"
	KindQuiz    Kind = "quiz"
	KindQuizSet Kind = "quiz_set"
)

func ParseKind(value string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(value))); k {
	case KindTopic, KindQuiz, KindQuizSet:
		return k, nil
	default:
		return "", Validationf("kind must be one of topic, quiz, quiz_set")
	}
}

type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusEditing         Status = "editing"
	StatusArchived        Status = "archived"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusDraft,
	StatusPendingApproval,
	StatusApproved,
	StatusRejected,
	StatusEditing,
	StatusArchived,
}

func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Statuses {
		if s == known {
			return s, nil
		}
	}
	return "", Validationf("unknown status %q", value)
}

type Visibility string

const (
	VisibilityPublic       Visibility = "public"
	VisibilityOrganization Visibility = "organization"
	VisibilityPrivate      Visibility = "private"
)

// ParseVisibility defaults an empty value to public.
func ParseVisibility(value string) (Visibility, error) {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(value))); v {
	case "":
		return VisibilityPublic, nil
	case VisibilityPublic, VisibilityOrganization, VisibilityPrivate:
		return v, nil
	default:
		return "", Validationf("visibility must be one of public, organization, private")
	}
}

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityOrganization || v == VisibilityPrivate
}

// Item is a topic, quiz or quiz set governed by the approval workflow.
type Item struct {
	ID                 string          `json:"id"`
	Kind               Kind            `json:"kind"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Body               json.RawMessage `json:"body,omitempty"`
	OwnerID            string          `json:"ownerId"`
	CollaboratorIDs    []string        `json:"collaboratorIds"`
	OrganizationID     string          `json:"organizationId,omitempty"`
	ParentID           string          `json:"parentId,omitempty"`
	Visibility         Visibility      `json:"visibility"`
	Status             Status          `json:"status"`
	EditRequestPending bool            `json:"editRequestPending"`
	EditRequestedBy    string          `json:"editRequestedBy,omitempty"`
	EditRequestedAt    *time.Time      `json:"editRequestedAt,omitempty"`
	ReviewedBy         string          `json:"reviewedBy,omitempty"`
	ReviewedAt         *time.Time      `json:"reviewedAt,omitempty"`
	ReviewComments     string          `json:"reviewComments,omitempty"`
	PublishedAt        *time.Time      `json:"publishedAt,omitempty"`
	IsDeleted          bool            `json:"isDeleted"`
	DeletedBy          string          `json:"deletedBy,omitempty"`
	DeletedAt          *time.Time      `json:"deletedAt,omitempty"`
	History            []HistoryEntry  `json:"history,omitempty"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// ValidateParent checks that parent may hold an item of kind child. Quizzes
// belong to a topic or a quiz set and quiz sets belong to a topic.
func ValidateParent(child Kind, parent Item) error {
	if parent.IsDeleted {
		return Validationf("parent %s is deleted", parent.ID)
	}
	switch child {
	case KindQuiz:
		if parent.Kind == KindTopic || parent.Kind == KindQuizSet {
			return nil
		}
	case KindQuizSet:
		if parent.Kind == KindTopic {
			return nil
		}
	}
	return Validationf("a %s cannot belong to a %s", child, parent.Kind)
}

// Clone returns a copy that shares no slices or pointers with item.
func (item Item) Clone() Item {
	out := item
	if item.Body != nil {
		out.Body = append(json.RawMessage(nil), item.Body...)
	}
	out.CollaboratorIDs = append([]string{}, item.CollaboratorIDs...)
	if item.History != nil {
		out.History = append([]HistoryEntry(nil), item.History...)
	}
	out.EditRequestedAt = cloneTime(item.EditRequestedAt)
	out.ReviewedAt = cloneTime(item.ReviewedAt)
	out.PublishedAt = cloneTime(item.PublishedAt)
	out.DeletedAt = cloneTime(item.DeletedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Caller is the authenticated identity issuing a request.
type Caller struct {
	ID             string    `json:"id"`
	Role           rbac.Role `json:"role"`
	OrganizationID string    `json:"organizationId,omitempty"`
	AccountStatus  string    `json:"accountStatus,omitempty"`
}

// Anonymous is the caller used when no identity is present.
func Anonymous() Caller {
	return Caller{Role: rbac.RoleEstudiante}
}

func (c Caller) Authenticated() bool {
	return c.ID != ""
}

func (c Caller) String() string {
	if c.OrganizationID == "" {
		return fmt.Sprintf("%s(%s)", c.ID, c.Role)
	}
	return fmt.Sprintf("%s(%s@%s)", c.ID, c.Role, c.OrganizationID)
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Normalize clamps the page into the supported range.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
