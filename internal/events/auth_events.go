package events

import "time"

const (
	EventProfileCreated = "profile.created"
	EventRoleChanged    = "profile.role_changed"
	EventUserSignedIn   = "auth.signed_in"
	EventUserSignedOut  = "auth.signed_out"
)

// ProfileCreatedEvent is emitted when a first sign-in creates a profile
type ProfileCreatedEvent struct {
	BaseEvent
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// NewProfileCreatedEvent creates a new ProfileCreatedEvent
func NewProfileCreatedEvent(subjectID, email, name, role string, at time.Time) *ProfileCreatedEvent {
	return &ProfileCreatedEvent{
		BaseEvent: newBaseEvent(EventProfileCreated, subjectID, at),
		Email:     email,
		Name:      name,
		Role:      role,
	}
}

// RoleChangedEvent is emitted when an operator changes a profile's role
type RoleChangedEvent struct {
	BaseEvent
	Role string `json:"role"`
}

// NewRoleChangedEvent creates a new RoleChangedEvent
func NewRoleChangedEvent(subjectID, role string, at time.Time) *RoleChangedEvent {
	return &RoleChangedEvent{
		BaseEvent: newBaseEvent(EventRoleChanged, subjectID, at),
		Role:      role,
	}
}

// UserSignedInEvent is emitted after the identity provider redirect completes
type UserSignedInEvent struct {
	BaseEvent
	FirstSignIn bool `json:"first_sign_in"`
}

// NewUserSignedInEvent creates a new UserSignedInEvent
func NewUserSignedInEvent(subjectID string, firstSignIn bool, at time.Time) *UserSignedInEvent {
	return &UserSignedInEvent{
		BaseEvent:   newBaseEvent(EventUserSignedIn, subjectID, at),
		FirstSignIn: firstSignIn,
	}
}

// UserSignedOutEvent is emitted when a session is ended
type UserSignedOutEvent struct {
	BaseEvent
}

// NewUserSignedOutEvent creates a new UserSignedOutEvent
func NewUserSignedOutEvent(subjectID string, at time.Time) *UserSignedOutEvent {
	return &UserSignedOutEvent{BaseEvent: newBaseEvent(EventUserSignedOut, subjectID, at)}
}
