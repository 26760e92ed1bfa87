package model

type UserType string

const (
	UserTypeIndividual UserType = "individual"
	UserTypeTherapist  UserType = "therapist"
	UserTypePartner    UserType = "partner"
	UserTypeAdmin      UserType = "admin"
)

func (t UserType) Valid() bool {
	switch t {
	case UserTypeIndividual, UserTypeTherapist, UserTypePartner, UserTypeAdmin:
		return true
	}
	return false
}

type SessionStatus string

const (
	SessionStatusPendingApproval SessionStatus = "pending_approval"
	SessionStatusScheduled       SessionStatus = "scheduled"
	SessionStatusInProgress      SessionStatus = "in_progress"
	SessionStatusCompleted       SessionStatus = "completed"
	SessionStatusCancelled       SessionStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusCancelled
}

// CanTransitionTo reports whether the booking state machine allows s -> to.
func (s SessionStatus) CanTransitionTo(to SessionStatus) bool {
	switch to {
	case SessionStatusScheduled:
		return s == SessionStatusPendingApproval
	case SessionStatusInProgress:
		return s == SessionStatusScheduled
	case SessionStatusCompleted:
		return s == SessionStatusInProgress
	case SessionStatusCancelled:
		return s.Valid() && !s.Terminal()
	}
	return false
}

// Reschedulable reports whether the session may still move to another slot.
func (s SessionStatus) Reschedulable() bool {
	return s == SessionStatusPendingApproval || s == SessionStatusScheduled
}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPendingApproval, SessionStatusScheduled, SessionStatusInProgress,
		SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

type MagicLinkType string

const (
	MagicLinkLogin  MagicLinkType = "login"
	MagicLinkSignup MagicLinkType = "signup"
)

func (t MagicLinkType) Valid() bool {
	return t == MagicLinkLogin || t == MagicLinkSignup
}
